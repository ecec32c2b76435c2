// Copyright 2019 Dolthub, Inc.
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

package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseError(t *testing.T) {
	assert := assert.New(t)

	assertParseError := func(s string) {
		assert.Panics(func() {
			Parse(s)
		})
	}

	assertParseError("foo")
	// too few digits
	assertParseError("0000000000000000000000000000000000000000000000000000000000000")
	// too many digits
	assertParseError("00000000000000000000000000000000000000000000000000000000000000000")
	// not valid hex
	assertParseError("zz00000000000000000000000000000000000000000000000000000000000000")

	r := Parse("0000000000000000000000000000000000000000000000000000000000000000"[:64])
	assert.NotNil(r)
	assert.True(r.IsEmpty())
}

func TestMaybeParse(t *testing.T) {
	assert := assert.New(t)

	parse := func(s string, success bool) {
		r, ok := MaybeParse(s)
		assert.Equal(success, ok, "expected success=%t for %s", success, s)
		if ok {
			assert.Equal(s, r.String())
		} else {
			assert.Equal(emptyHash, r)
		}
	}

	zero := ""
	for i := 0; i < StringLen; i++ {
		zero += "0"
	}
	parse(zero, true)
	parse("", false)
	parse("adsfasdf", false)
}

func TestEquals(t *testing.T) {
	assert := assert.New(t)

	r0 := Of([]byte("a"))
	r01 := Of([]byte("a"))
	r1 := Of([]byte("b"))

	assert.Equal(r0, r01)
	assert.NotEqual(r0, r1)
}

func TestStringRoundTrip(t *testing.T) {
	r := Of([]byte("roundtrip me"))
	s := r.String()
	assert.Len(t, s, StringLen)

	back, err := ParseHash(s)
	assert.NoError(t, err)
	assert.Equal(t, r, back)
}

func TestIsEmpty(t *testing.T) {
	var z Hash
	assert.True(t, z.IsEmpty())
	assert.False(t, Of([]byte("x")).IsEmpty())
}

func TestLessAndCompare(t *testing.T) {
	assert := assert.New(t)

	a, err := FromBytes(append(make([]byte, 31), 1))
	assert.NoError(err)
	b, err := FromBytes(append(make([]byte, 31), 2))
	assert.NoError(err)

	assert.True(a.Less(b))
	assert.False(b.Less(a))
	assert.False(a.Less(a))

	assert.True(a.Compare(b) < 0)
	assert.True(b.Compare(a) > 0)
	assert.Equal(0, a.Compare(a))
}

func TestCombineDeterministic(t *testing.T) {
	assert := assert.New(t)

	a := Of([]byte("left"))
	b := Of([]byte("right"))

	c1 := Combine(a, b)
	c2 := Combine(a, b)
	assert.Equal(c1, c2)

	// order matters
	c3 := Combine(b, a)
	assert.NotEqual(c1, c3)
}

func TestStreamingHasherMatchesOf(t *testing.T) {
	assert := assert.New(t)

	data := []byte("some reasonably long input used to exercise streaming writes")
	h := New()
	_, err := h.Write(data[:10])
	assert.NoError(err)
	_, err = h.Write(data[10:])
	assert.NoError(err)

	assert.Equal(Of(data), h.Sum())
}

func TestSet(t *testing.T) {
	assert := assert.New(t)

	a := Of([]byte("a"))
	b := Of([]byte("b"))

	s := NewSet(a)
	assert.True(s.Has(a))
	assert.False(s.Has(b))

	s.Insert(b)
	assert.True(s.Has(b))
}
