// Copyright 2024 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package chunk implements content-defined chunking (CDC): splitting a
// byte stream into variable-sized, hash-named chunks whose boundaries
// depend only on local content, so that identical substrings anywhere in
// a corpus of files produce identical chunks.
package chunk

import (
	"math/bits"

	"github.com/digstore/dig/digerr"
)

// Config parameterizes the chunker. Min ≤ Avg ≤ Max must hold.
type Config struct {
	MinSize uint32
	AvgSize uint32
	MaxSize uint32
}

// Default targets an average chunk size of 1 MiB, a reasonable middle
// ground for mixed-size file corpora.
func Default() Config {
	return Config{MinSize: 256 * 1024, AvgSize: 1 << 20, MaxSize: 4 << 20}
}

// SmallFiles targets a smaller average chunk, favoring dedup granularity
// over per-chunk overhead for corpora dominated by small text/config
// files.
func SmallFiles() Config {
	return Config{MinSize: 2 * 1024, AvgSize: 16 * 1024, MaxSize: 64 * 1024}
}

// LargeFiles targets a larger average chunk, favoring fewer chunks and
// lower index overhead for corpora dominated by large media/binary
// blobs.
func LargeFiles() Config {
	return Config{MinSize: 2 << 20, AvgSize: 8 << 20, MaxSize: 32 << 20}
}

// Validate enforces the min ≤ avg ≤ max ordering contract.
func (c Config) Validate() error {
	if c.MinSize == 0 || c.AvgSize == 0 || c.MaxSize == 0 {
		return digerr.New(digerr.KindInvalidConfig, "chunk sizes must be non-zero (min=%d avg=%d max=%d)", c.MinSize, c.AvgSize, c.MaxSize)
	}
	if !(c.MinSize <= c.AvgSize && c.AvgSize <= c.MaxSize) {
		return digerr.New(digerr.KindInvalidConfig, "chunk sizes must satisfy min <= avg <= max (min=%d avg=%d max=%d)", c.MinSize, c.AvgSize, c.MaxSize)
	}
	return nil
}

// maskBits picks the mask bit-width from AvgSize: a boundary fires
// roughly every 2^maskBits bytes under a uniformly distributed rolling
// hash, so bits = ceil(log2(avg)).
func (c Config) maskBits() uint {
	avg := c.AvgSize
	if avg < 2 {
		avg = 2
	}
	// bits.Len32(avg-1) rounds up to the next power-of-two exponent.
	return uint(bits.Len32(avg - 1))
}

// mask returns the bitmask a candidate boundary's gear-hash value must
// satisfy (all masked bits zero) to declare a split.
func (c Config) mask() uint64 {
	bitsWidth := c.maskBits()
	if bitsWidth >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bitsWidth) - 1
}
