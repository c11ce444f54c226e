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

// Per-peer Curve25519 key agreement and authenticated encryption of share
// payloads.

package client

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/edgeml-ai/secagg/constants"
	"github.com/google/tink/go/subtle/random"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// PeerKeyBundle holds the two raw Curve25519 public keys a peer publishes for
// one round. PK1 is the base for the pair-shared secrets that seed the
// pairwise mask streams; PK2 is the base for the per-peer share encryption
// keys.
type PeerKeyBundle struct {
	PK1 [constants.CurvePointBytes]byte
	PK2 [constants.CurvePointBytes]byte
}

// keyPair is one Curve25519 key pair.
type keyPair struct {
	private [constants.CurvePointBytes]byte
	public  [constants.CurvePointBytes]byte
}

func newKeyPair() (keyPair, error) {
	var kp keyPair
	copy(kp.private[:], random.GetRandomBytes(constants.CurvePointBytes))
	pub, err := curve25519.X25519(kp.private[:], curve25519.Basepoint)
	if err != nil {
		return keyPair{}, fmt.Errorf("deriving public key: %v", err)
	}
	copy(kp.public[:], pub)
	return kp, nil
}

// keyExchange owns a client's two key pairs for one round and the symmetric
// keys derived from every peer's PK2.
type keyExchange struct {
	sessionID string
	pair1     keyPair
	pair2     keyPair

	peerKeys  map[int]PeerKeyBundle
	shareKeys map[int][]byte
}

func newKeyExchange(sessionID string) (*keyExchange, error) {
	pair1, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	pair2, err := newKeyPair()
	if err != nil {
		return nil, err
	}
	return &keyExchange{
		sessionID: sessionID,
		pair1:     pair1,
		pair2:     pair2,
		peerKeys:  make(map[int]PeerKeyBundle),
		shareKeys: make(map[int][]byte),
	}, nil
}

// publicKeys returns this client's key bundle for distribution.
func (kx *keyExchange) publicKeys() PeerKeyBundle {
	return PeerKeyBundle{PK1: kx.pair1.public, PK2: kx.pair2.public}
}

// privateKey1 exposes the first private key; the pairwise protocol Shamir-
// shares it so that peers can recover this client's contribution on dropout.
func (kx *keyExchange) privateKey1() []byte {
	out := make([]byte, constants.CurvePointBytes)
	copy(out, kx.pair1.private[:])
	return out
}

// receivePeerPublicKeys stores the peers' bundles and derives one symmetric
// share encryption key per peer from PK2 via ECDH + HKDF-SHA256, domain
// separated by session id. ECDH symmetry guarantees both sides of every pair
// derive the same key.
func (kx *keyExchange) receivePeerPublicKeys(keys map[int]PeerKeyBundle) error {
	staged := make(map[int][]byte, len(keys))
	for peer, bundle := range keys {
		shared, err := curve25519.X25519(kx.pair2.private[:], bundle.PK2[:])
		if err != nil {
			return fmt.Errorf("ECDH with peer %d: %v", peer, err)
		}
		info := []byte(constants.ShareKeyInfoPrefix + kx.sessionID)
		key := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, info), key); err != nil {
			return fmt.Errorf("deriving share key for peer %d: %v", peer, err)
		}
		staged[peer] = key
	}
	// Commit only once every bundle has verified; a malformed bundle must not
	// leave earlier peers' keys behind.
	for peer, key := range staged {
		kx.peerKeys[peer] = keys[peer]
		kx.shareKeys[peer] = key
	}
	return nil
}

// peerBundle returns the stored key bundle for peer.
func (kx *keyExchange) peerBundle(peer int) (PeerKeyBundle, bool) {
	bundle, ok := kx.peerKeys[peer]
	return bundle, ok
}

// SharedPairSecret computes the X25519 shared secret between one participant's
// first private key and another participant's first public key. ECDH symmetry
// makes both directions of a pair derive the same secret, which seeds the
// pair's mask stream.
func SharedPairSecret(privateKey []byte, peerPK1 [constants.CurvePointBytes]byte) ([]byte, error) {
	return curve25519.X25519(privateKey, peerPK1[:])
}

// encryptForPeer encrypts plaintext for the given peer with the key derived
// from its PK2.
func (kx *keyExchange) encryptForPeer(peer int, plaintext []byte) ([]byte, error) {
	key, ok := kx.shareKeys[peer]
	if !ok {
		return nil, fmt.Errorf("%w: peer %d", ErrMissingPeerKeys, peer)
	}
	return aeadEncrypt(key, plaintext, nil)
}

// decryptFromPeer is the inverse of the peer's encryptForPeer. It fails closed
// on tampered ciphertexts or key mismatches.
func (kx *keyExchange) decryptFromPeer(peer int, ciphertext []byte) ([]byte, error) {
	key, ok := kx.shareKeys[peer]
	if !ok {
		return nil, fmt.Errorf("%w: peer %d", ErrMissingPeerKeys, peer)
	}
	return aeadDecrypt(key, ciphertext, nil)
}

// hasPeerKeys reports whether any peer bundle has been received.
func (kx *keyExchange) hasPeerKeys() bool {
	return len(kx.shareKeys) > 0
}
