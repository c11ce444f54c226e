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

// Package shamirgeneric implements shamir secret sharing with a generic field structure.
package shamirgeneric

import (
	"fmt"

	"github.com/edgeml-ai/secagg/internal/secret_sharing/internal/field"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/secrets"
)

// SplitSecret splits a secret into n shares where t or more shares can be combined
// to reconstruct the original secret using shamir secret sharing.
//
// A threshold of 1 degenerates to plain replication: every share carries the
// secret itself. An empty secret yields shares with empty values.
func SplitSecret(metadata secrets.Metadata, secret []byte, pf field.PrimeField) (secrets.Split, error) {
	if err := validateSplitInput(metadata, pf); err != nil {
		return secrets.Split{}, err
	}
	threshold := metadata.Threshold
	numShares := metadata.NumShares
	// The `secret` can be an arbitrary length byte array, but each element in a
	// field is of a finite size, hence the `secret` is split into a set of
	// elements in the field.
	subsecrets, err := pf.DecodeElements(secret, chunkSize(metadata, pf))
	if err != nil {
		return secrets.Split{}, err
	}
	shares := make([]secrets.Share, numShares)
	for i := range shares {
		shares[i].X = i + 1
	}

	// For each subsecret we build a polynomial of degree threshold-1. The
	// subsecret is the constant coefficient and every other coefficient is a
	// random field element:
	// subsecret + R_1 * x^1 + R_2 * x^2 + ... + R_{T-1} * x^(T-1)
	for _, subsecret := range subsecrets {
		coefficients := make([]field.Element, threshold)
		coefficients[0] = subsecret
		for i := 1; i < threshold; i++ {
			if coefficients[i], err = pf.NewRandom(); err != nil {
				return secrets.Split{}, err
			}
		}
		for i := 0; i < numShares; i++ {
			// Each sub-share is the evaluation of the subsecret's polynomial at
			// the share's X coordinate.
			xi, err := pf.CreateElement(i + 1)
			if err != nil {
				return secrets.Split{}, err
			}
			subshare := evaluatePolynomial(coefficients, xi)
			shares[i].Value = append(shares[i].Value, subshare.Bytes()...)
		}
	}
	return secrets.Split{
		Shares:    shares,
		Metadata:  metadata,
		SecretLen: len(secret),
	}, nil
}

// evaluates a polynomial at `x` via Horner's rule where `coefficients` take the form:
// f(x) = c[n-1] * x^(n-1) + c[n-2] * x^(n-2) + ... + c[1] * x^1 + c[0]
func evaluatePolynomial(coefficients []field.Element, x field.Element) field.Element {
	sum := coefficients[len(coefficients)-1]
	for i := len(coefficients) - 2; i >= 0; i-- {
		sum = sum.Multiply(x).Add(coefficients[i])
	}
	return sum
}

// Reconstruct reconstructs a secret from at least t out of n shares.
//
// Fewer shares than the threshold yield an empty byte slice and a nil error.
// "Not enough shares yet" is an expected intermediate state of the protocol,
// so it deliberately is not an error; callers must track share counts
// themselves before trusting a reconstruction.
func Reconstruct(splitSecret secrets.Split, pf field.PrimeField) ([]byte, error) {
	if err := validateReconstructInput(splitSecret, pf); err != nil {
		return nil, err
	}
	if len(splitSecret.Shares) < splitSecret.Metadata.Threshold {
		return []byte{}, nil
	}
	// Only `threshold` shares are needed to reconstruct the secret.
	shares := splitSecret.Shares[:splitSecret.Metadata.Threshold]
	xVals := make([]field.Element, 0, len(shares))
	for _, s := range shares {
		xi, err := pf.CreateElement(s.X)
		if err != nil {
			return nil, err
		}
		xVals = append(xVals, xi)
	}
	// Precompute the Lagrange coefficients before interpolating each subsecret
	// polynomial; they only depend on the X coordinates.
	coefficients, err := lagrangeCoefficients(xVals, pf)
	if err != nil {
		return nil, err
	}
	numSubsecrets := len(shares[0].Value) / pf.ElementSize()
	subsecrets := make([]field.Element, numSubsecrets)
	for i := 0; i < numSubsecrets; i++ {
		yVals := make([]field.Element, len(shares))
		for j, s := range shares {
			if yVals[j], err = pf.ReadElement(s.Value, i); err != nil {
				return nil, err
			}
		}
		// Interpolation at x=0 recovers the constant coefficient of the
		// subsecret's polynomial.
		subsecrets[i], err = interpolatePolynomial(coefficients, yVals, pf)
		if err != nil {
			return nil, err
		}
	}
	return pf.EncodeElements(subsecrets, chunkSize(splitSecret.Metadata, pf), splitSecret.SecretLen)
}

// performs lagrange polynomial interpolation at x=0 to recover the constant
// term from a set of points:
// ∑i={1,n} y[i] * ( ∏j={1,n,j≠i} ( x[j] / ( x[j] - x[i]) ) )
func interpolatePolynomial(lagCoeff []field.Element, yVals []field.Element, pf field.PrimeField) (field.Element, error) {
	if len(lagCoeff) != len(yVals) {
		return nil, fmt.Errorf("invalid lagrange coefficients")
	}
	sum, err := pf.CreateElement(0)
	if err != nil {
		return nil, err
	}
	for i, y := range yVals {
		sum = sum.Add(y.Multiply(lagCoeff[i]))
	}
	return sum, nil
}

// recovers the lagrange coefficients for interpolation at x=0 using only the
// x coordinates:
// ∏j={1,n,j≠i} ( x[j] / ( x[j] - x[i] ) )
// A single point yields the coefficient 1, which makes threshold=1
// reconstruction the identity on the share value.
func lagrangeCoefficients(x []field.Element, pf field.PrimeField) ([]field.Element, error) {
	out := make([]field.Element, 0, len(x))
	for i := 0; i < len(x); i++ {
		li, err := pf.CreateElement(1)
		if err != nil {
			return nil, err
		}
		for j := 0; j < len(x); j++ {
			if i == j {
				continue
			}
			diff := x[j].Subtract(x[i])
			if diff.IsZero() {
				return nil, fmt.Errorf("all shares should be unique points")
			}
			inv, err := diff.Inverse()
			if err != nil {
				return nil, err
			}
			li = li.Multiply(x[j]).Multiply(inv)
		}
		out = append(out, li)
	}
	return out, nil
}

func chunkSize(metadata secrets.Metadata, pf field.PrimeField) int {
	if metadata.ChunkSize == 0 {
		return pf.MaxChunkSize()
	}
	return metadata.ChunkSize
}

func validateSplitInput(metadata secrets.Metadata, pf field.PrimeField) error {
	if metadata.NumShares < 1 {
		return fmt.Errorf("numShares must be at least 1")
	}
	if metadata.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1")
	}
	if metadata.Threshold > metadata.NumShares {
		return fmt.Errorf("threshold should be smaller than or equal to numShares")
	}
	if metadata.Field != pf.FieldID() {
		return fmt.Errorf("field ID mismatch")
	}
	return nil
}

func validateReconstructInput(splitSecret secrets.Split, pf field.PrimeField) error {
	if splitSecret.Metadata.Threshold < 1 {
		return fmt.Errorf("threshold must be at least 1")
	}
	if splitSecret.Metadata.NumShares < splitSecret.Metadata.Threshold {
		return fmt.Errorf("threshold larger than number of shares")
	}
	for _, s := range splitSecret.Shares {
		if s.X < 1 || s.X > splitSecret.Metadata.NumShares {
			return fmt.Errorf("invalid X value: %d", s.X)
		}
		if len(s.Value)%pf.ElementSize() != 0 {
			return fmt.Errorf("share value length %d is not a multiple of the element size", len(s.Value))
		}
	}
	return nil
}
