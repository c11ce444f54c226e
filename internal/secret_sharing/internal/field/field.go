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

// Package field defines a generic definition of a prime finite field.
package field

import "github.com/edgeml-ai/secagg/internal/secret_sharing/finitefield"

// Element is an element in a finite field.
type Element interface {
	// Add element `a` and returns a new element.
	Add(a Element) Element
	// Subtract element `a` and returns a new element.
	Subtract(a Element) Element
	// Multiply by element `a` and returns a new element.
	Multiply(a Element) Element
	// Inverse returns an element that's the multiplicative inverse.
	// If the element has no inverse, an error is returned.
	Inverse() (Element, error)
	// IsZero reports whether the element is the additive identity.
	IsZero() bool
	// Equal reports whether two elements hold the same value.
	Equal(a Element) bool
	// Bytes returns the element as a fixed-width big endian byte slice of
	// length ElementSize().
	Bytes() []byte
}

// PrimeField represents a finite field of prime order.
type PrimeField interface {
	// CreateElement creates a new field element from i. The value of i must be
	// non-negative and below the field order.
	CreateElement(i int) (Element, error)
	// NewRandom generates a uniformly random element of the field.
	// The random element is assumed to be good enough for cryptographic purposes.
	NewRandom() (Element, error)
	// ReadElement reads the i-th fixed-width element from a big endian encoded
	// byte slice b, as produced by Element.Bytes.
	ReadElement(b []byte, i int) (Element, error)
	// EncodeElements packs a set of field elements back into a byte slice of
	// size secLen, chunkSize bytes per element. It is the inverse of
	// DecodeElements.
	EncodeElements(parts []Element, chunkSize, secLen int) ([]byte, error)
	// DecodeElements splits a byte slice into field elements, chunkSize bytes
	// per element, zero-padding the final chunk. Every chunk must be a valid
	// field element, so chunkSize must not exceed MaxChunkSize().
	DecodeElements(b []byte, chunkSize int) ([]Element, error)
	// ElementSize returns the fixed encoded size of each element in bytes.
	ElementSize() int
	// MaxChunkSize returns the largest chunk size for which any chunk value is
	// guaranteed to be below the field order.
	MaxChunkSize() int
	// FieldID returns a unique identifier for the field.
	FieldID() finitefield.ID
}
