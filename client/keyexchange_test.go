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

package client

import (
	"bytes"
	"errors"
	"testing"

	"github.com/edgeml-ai/secagg/constants"
)

func TestNewKeyPairProducesDistinctKeys(t *testing.T) {
	a, err := newKeyPair()
	if err != nil {
		t.Fatalf("newKeyPair() err = %v, want nil", err)
	}
	b, err := newKeyPair()
	if err != nil {
		t.Fatalf("newKeyPair() err = %v, want nil", err)
	}
	if a.public == b.public {
		t.Errorf("two fresh key pairs share a public key: %x", a.public)
	}
	if a.public == a.private {
		t.Errorf("public key equals private key")
	}
}

func TestKeyExchangeDerivesSymmetricKeys(t *testing.T) {
	alice, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	bob, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	if err := alice.receivePeerPublicKeys(map[int]PeerKeyBundle{2: bob.publicKeys()}); err != nil {
		t.Fatalf("alice.receivePeerPublicKeys() err = %v, want nil", err)
	}
	if err := bob.receivePeerPublicKeys(map[int]PeerKeyBundle{1: alice.publicKeys()}); err != nil {
		t.Fatalf("bob.receivePeerPublicKeys() err = %v, want nil", err)
	}
	// ECDH symmetry: the key Alice derived for Bob equals the key Bob derived
	// for Alice.
	if !bytes.Equal(alice.shareKeys[2], bob.shareKeys[1]) {
		t.Errorf("derived keys differ: alice %x, bob %x", alice.shareKeys[2], bob.shareKeys[1])
	}
	if len(alice.shareKeys[2]) != 32 {
		t.Errorf("derived key length = %d, want 32", len(alice.shareKeys[2]))
	}
}

func TestKeyExchangeSessionSeparation(t *testing.T) {
	alice, err := newKeyExchange("session-a")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	bob, err := newKeyExchange("session-b")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	if err := alice.receivePeerPublicKeys(map[int]PeerKeyBundle{2: bob.publicKeys()}); err != nil {
		t.Fatalf("alice.receivePeerPublicKeys() err = %v, want nil", err)
	}
	if err := bob.receivePeerPublicKeys(map[int]PeerKeyBundle{1: alice.publicKeys()}); err != nil {
		t.Fatalf("bob.receivePeerPublicKeys() err = %v, want nil", err)
	}
	if bytes.Equal(alice.shareKeys[2], bob.shareKeys[1]) {
		t.Errorf("keys derived under different session ids match")
	}
}

func TestReceivePeerPublicKeysAllOrNothing(t *testing.T) {
	kx, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	peer, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	// An all-zero PK2 is a low-order point that X25519 rejects. One bad
	// bundle in the batch must leave no keys behind for the good one.
	bad := PeerKeyBundle{}
	err = kx.receivePeerPublicKeys(map[int]PeerKeyBundle{2: peer.publicKeys(), 3: bad})
	if err == nil {
		t.Fatalf("receivePeerPublicKeys() err = nil, want error for low-order point")
	}
	if kx.hasPeerKeys() {
		t.Errorf("hasPeerKeys() = true after failed batch")
	}
	if len(kx.peerKeys) != 0 || len(kx.shareKeys) != 0 {
		t.Errorf("failed batch committed partial state: %d bundles, %d keys", len(kx.peerKeys), len(kx.shareKeys))
	}
}

func TestSharedPairSecretSymmetry(t *testing.T) {
	alice, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	bob, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	ab, err := SharedPairSecret(alice.privateKey1(), bob.publicKeys().PK1)
	if err != nil {
		t.Fatalf("SharedPairSecret() err = %v, want nil", err)
	}
	ba, err := SharedPairSecret(bob.privateKey1(), alice.publicKeys().PK1)
	if err != nil {
		t.Fatalf("SharedPairSecret() err = %v, want nil", err)
	}
	if !bytes.Equal(ab, ba) {
		t.Errorf("pair secrets differ: %x vs %x", ab, ba)
	}
	if len(ab) != constants.CurvePointBytes {
		t.Errorf("pair secret length = %d, want %d", len(ab), constants.CurvePointBytes)
	}
}

func TestEncryptForPeerRoundTrip(t *testing.T) {
	alice, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	bob, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	if err := alice.receivePeerPublicKeys(map[int]PeerKeyBundle{2: bob.publicKeys()}); err != nil {
		t.Fatalf("alice.receivePeerPublicKeys() err = %v, want nil", err)
	}
	if err := bob.receivePeerPublicKeys(map[int]PeerKeyBundle{1: alice.publicKeys()}); err != nil {
		t.Fatalf("bob.receivePeerPublicKeys() err = %v, want nil", err)
	}

	plaintext := []byte("shamir shares for bob")
	blob, err := alice.encryptForPeer(2, plaintext)
	if err != nil {
		t.Fatalf("encryptForPeer() err = %v, want nil", err)
	}
	got, err := bob.decryptFromPeer(1, blob)
	if err != nil {
		t.Fatalf("decryptFromPeer() err = %v, want nil", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("decryptFromPeer() = %q, want %q", got, plaintext)
	}

	tampered := append([]byte{}, blob...)
	tampered[len(tampered)-1] ^= 0x01
	if _, err := bob.decryptFromPeer(1, tampered); !errors.Is(err, ErrDecryptionFailure) {
		t.Errorf("decryptFromPeer(tampered) err = %v, want ErrDecryptionFailure", err)
	}
}

func TestEncryptForUnknownPeer(t *testing.T) {
	kx, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	if _, err := kx.encryptForPeer(9, []byte("payload")); !errors.Is(err, ErrMissingPeerKeys) {
		t.Errorf("encryptForPeer(unknown) err = %v, want ErrMissingPeerKeys", err)
	}
	if _, err := kx.decryptFromPeer(9, []byte("payload")); !errors.Is(err, ErrMissingPeerKeys) {
		t.Errorf("decryptFromPeer(unknown) err = %v, want ErrMissingPeerKeys", err)
	}
	if kx.hasPeerKeys() {
		t.Errorf("hasPeerKeys() = true before any bundle received")
	}
}

func TestPrivateKey1IsACopy(t *testing.T) {
	kx, err := newKeyExchange("session-kx")
	if err != nil {
		t.Fatalf("newKeyExchange() err = %v, want nil", err)
	}
	sk := kx.privateKey1()
	if len(sk) != constants.CurvePointBytes {
		t.Fatalf("privateKey1() length = %d, want %d", len(sk), constants.CurvePointBytes)
	}
	sk[0] ^= 0xff
	if bytes.Equal(sk, kx.pair1.private[:]) {
		t.Errorf("mutating the returned key changed the stored private key")
	}
}
