// Copyright 2025 the EdgeML Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package p130 implements the prime field of order 2^130 - 5.
//
// The order is the Poly1305 prime. It was chosen over the more traditional
// 2^127 - 1 because seeds are shared as 16-byte chunks, and a 128-bit chunk
// does not fit below a 127-bit modulus. Elements are encoded as 17-byte big
// endian values.
package p130

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/edgeml-ai/secagg/internal/secret_sharing/finitefield"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/internal/field"
)

const (
	// PrimeP130 is the field order in decimal: 2^130 - 5.
	PrimeP130 = "1361129467683753853853498429727072845819"

	elementSizeBytes = 17
	maxChunkBytes    = 16
)

var prime *big.Int

func init() {
	var ok bool
	prime, ok = new(big.Int).SetString(PrimeP130, 10)
	if !ok {
		panic("p130: invalid field order constant")
	}
}

// Element is an element in the P130 field. The wrapped value is always
// reduced modulo the field order.
type Element struct {
	value *big.Int
}

var _ field.Element = (*Element)(nil)

func newElement(v *big.Int) field.Element {
	return &Element{value: v.Mod(v, prime)}
}

// Add element by 'x' modulo the field order.
func (e *Element) Add(x field.Element) field.Element {
	return newElement(new(big.Int).Add(e.value, x.(*Element).value))
}

// Subtract element by 'x' modulo the field order.
func (e *Element) Subtract(x field.Element) field.Element {
	return newElement(new(big.Int).Sub(e.value, x.(*Element).value))
}

// Multiply element by 'x' modulo the field order.
func (e *Element) Multiply(x field.Element) field.Element {
	return newElement(new(big.Int).Mul(e.value, x.(*Element).value))
}

// Inverse returns the multiplicative inverse for an element in the field.
func (e *Element) Inverse() (field.Element, error) {
	if e.value.Sign() == 0 {
		return nil, fmt.Errorf("zero has no multiplicative inverse")
	}
	return newElement(new(big.Int).ModInverse(e.value, prime)), nil
}

// IsZero reports whether the element is the additive identity.
func (e *Element) IsZero() bool {
	return e.value.Sign() == 0
}

// Equal reports whether two elements hold the same value.
func (e *Element) Equal(x field.Element) bool {
	return e.value.Cmp(x.(*Element).value) == 0
}

// Bytes returns a fixed-width big endian representation of the element value.
func (e *Element) Bytes() []byte {
	return e.value.FillBytes(make([]byte, elementSizeBytes))
}

// Field is the prime field of order 2^130 - 5.
type Field struct{}

var _ field.PrimeField = (*Field)(nil)

// New returns the P130 field.
func New() *Field {
	return &Field{}
}

// CreateElement creates a new field element from i.
func (f *Field) CreateElement(i int) (field.Element, error) {
	if i < 0 {
		return nil, fmt.Errorf("negative value cannot be a field element: %d", i)
	}
	return newElement(big.NewInt(int64(i))), nil
}

// NewRandom generates a uniformly random element of the field.
func (f *Field) NewRandom() (field.Element, error) {
	v, err := rand.Int(rand.Reader, prime)
	if err != nil {
		return nil, fmt.Errorf("generating random field element: %v", err)
	}
	return newElement(v), nil
}

// ReadElement reads the i-th fixed-width element from b.
func (f *Field) ReadElement(b []byte, i int) (field.Element, error) {
	offset := i * elementSizeBytes
	if offset < 0 || offset+elementSizeBytes > len(b) {
		return nil, fmt.Errorf("element index %d out of range for %d bytes", i, len(b))
	}
	v := new(big.Int).SetBytes(b[offset : offset+elementSizeBytes])
	if v.Cmp(prime) >= 0 {
		return nil, fmt.Errorf("encoded value at index %d is not below the field order", i)
	}
	return newElement(v), nil
}

// EncodeElements packs field elements back into a byte slice of size secLen,
// chunkSize bytes per element.
func (f *Field) EncodeElements(parts []field.Element, chunkSize, secLen int) ([]byte, error) {
	if chunkSize <= 0 || chunkSize > maxChunkBytes {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}
	padded := len(parts) * chunkSize
	if secLen > padded {
		return nil, fmt.Errorf("secret length %d exceeds %d encoded bytes", secLen, padded)
	}
	out := make([]byte, 0, padded)
	chunk := make([]byte, chunkSize)
	for i, part := range parts {
		v := part.(*Element).value
		if v.BitLen() > chunkSize*8 {
			return nil, fmt.Errorf("element %d does not fit in a %d-byte chunk", i, chunkSize)
		}
		out = append(out, v.FillBytes(chunk)...)
	}
	return out[:secLen], nil
}

// DecodeElements splits a byte slice into field elements, chunkSize bytes per
// element. The final chunk is zero-padded on the right; callers must track the
// original byte length out of band.
func (f *Field) DecodeElements(b []byte, chunkSize int) ([]field.Element, error) {
	if chunkSize <= 0 || chunkSize > maxChunkBytes {
		return nil, fmt.Errorf("invalid chunk size: %d", chunkSize)
	}
	numChunks := (len(b) + chunkSize - 1) / chunkSize
	parts := make([]field.Element, 0, numChunks)
	for i := 0; i < numChunks; i++ {
		chunk := make([]byte, chunkSize)
		copy(chunk, b[i*chunkSize:])
		parts = append(parts, newElement(new(big.Int).SetBytes(chunk)))
	}
	return parts, nil
}

// ElementSize returns the encoded size of each element in bytes.
func (f *Field) ElementSize() int {
	return elementSizeBytes
}

// MaxChunkSize returns the largest supported secret chunk size in bytes.
func (f *Field) MaxChunkSize() int {
	return maxChunkBytes
}

// FieldID returns the identifier for the field.
func (f *Field) FieldID() finitefield.ID {
	return finitefield.P130
}
