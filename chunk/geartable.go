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

package chunk

import "github.com/cespare/xxhash/v2"

// gearTable holds one pseudo-random 64-bit value per possible input byte.
// A gear-hash rolling checksum folds these in as `hash = hash<<1 + table[b]`,
// which is cheap to maintain per byte and distributes boundary candidates
// uniformly over the input regardless of position — the property the CDC
// contract requires (spec §4.1: boundaries depend on content, not offset).
//
// The table is derived once at init from xxhash of each byte value, so it
// is reproducible without shipping a seed file and needs no runtime
// randomness (determinism guarantee, spec §5).
var gearTable [256]uint64

func init() {
	for b := 0; b < 256; b++ {
		gearTable[b] = xxhash.Sum64([]byte{byte(b), 0x9e, 0x37})
	}
}
