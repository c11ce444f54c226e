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

// Package shamir encapsulates all of the logic needed to perform t-of-n [Shamir
// Secret Sharing] (SSS) on arbitrary-size secrets over a finite field. SSS is
// based on the Lagrange interpolation theorem, which states that `k` points are
// enough to uniquely determine a polynomial of degree less than or equal to
// `k - 1`.
//
// This scheme is secure under the following assumptions:
//   - The scheme requires a trusted dealer to generate the shares. In the
//     aggregation protocol each client is the dealer for its own seeds.
//   - The scheme assumes a passive adversary which can observe (t - 1) shares
//     without being able to reconstruct the secrets. The adversary isn't
//     allowed to participate in the `Reconstruct` step by providing a chosen
//     share.
//
// Reconstruction with fewer shares than the threshold returns an empty result
// rather than an error: an incomplete share set is an expected intermediate
// state of the aggregation round, and an empty result leaks nothing.
//
// [Shamir Secret Sharing]: https://web.mit.edu/6.857/OldStuff/Fall03/ref/Shamir-HowToShareAsecrets.pdf
package shamir

import (
	"fmt"

	"github.com/edgeml-ai/secagg/internal/secret_sharing/finitefield"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/internal/field"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/internal/field/p130"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/internal/shamirgeneric"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/secrets"
)

func createField(fieldID finitefield.ID) (field.PrimeField, error) {
	switch fieldID {
	case finitefield.P130:
		return p130.New(), nil
	default:
		return nil, fmt.Errorf("invalid field: %q", fieldID)
	}
}

// SplitSecret splits a secret into metadata.NumShares shares where
// metadata.Threshold or more shares can be combined to reconstruct the
// original secret.
func SplitSecret(metadata secrets.Metadata, secret []byte) (secrets.Split, error) {
	f, err := createField(metadata.Field)
	if err != nil {
		return secrets.Split{}, err
	}
	return shamirgeneric.SplitSecret(metadata, secret, f)
}

// Reconstruct reconstructs the secret from secretSplit.
//
// If fewer shares than the threshold specified when the shares were created by
// [SplitSecret] are provided, the reconstruction yields an empty byte slice
// and a nil error. Reconstruct will not detect bogus or corrupted shares.
func Reconstruct(secretSplit secrets.Split) ([]byte, error) {
	f, err := createField(secretSplit.Metadata.Field)
	if err != nil {
		return nil, err
	}
	return shamirgeneric.Reconstruct(secretSplit, f)
}
