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

// Package constants contains protocol constants shared between the aggregator
// and every client. Changing any of them breaks cross-implementation
// interoperability of a running federation.
package constants

const (
	// SeedBytes is the size in bytes of mask seeds (pairwise and self).
	SeedBytes = 32

	// SeedChunkBytes is the number of seed bytes packed into one field element
	// when a seed is Shamir-shared. A 32-byte seed becomes two 16-byte chunks.
	SeedChunkBytes = 16

	// CurvePointBytes is the size of a raw Curve25519 public or private key.
	CurvePointBytes = 32

	// AESGCMNonceBytes is the nonce length prefixed to every encrypted share
	// blob in the combined ciphertext format.
	AESGCMNonceBytes = 12

	// AESGCMTagBytes is the authentication tag length appended to every
	// encrypted share blob.
	AESGCMTagBytes = 16

	// ShareKeyInfoPrefix is the HKDF domain-separation label for per-peer
	// share encryption keys; the session id is appended to it.
	ShareKeyInfoPrefix = "EdgeML SecAgg share key v1|"

	// PairwiseMaskLabel is the domain-separation label for deriving a pair's
	// mask stream seed from the pair's shared ECDH secret.
	PairwiseMaskLabel = "EdgeML SecAgg pairwise mask v1"

	// SelfMaskLabel is the domain-separation label for deriving a client's
	// self-mask seed from its round seed.
	SelfMaskLabel = "EdgeML SecAgg self mask v1"
)
