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
	"github.com/google/tink/go/subtle/random"
)

func TestAEADRoundTrip(t *testing.T) {
	key := random.GetRandomBytes(32)
	aad := []byte("session-1|1|2")
	for _, tc := range []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte{0x01}},
		{"share blob", random.GetRandomBytes(96)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			blob, err := aeadEncrypt(key, tc.plaintext, aad)
			if err != nil {
				t.Fatalf("aeadEncrypt() err = %v, want nil", err)
			}
			wantLen := constants.AESGCMNonceBytes + len(tc.plaintext) + constants.AESGCMTagBytes
			if len(blob) != wantLen {
				t.Errorf("ciphertext length = %d, want %d", len(blob), wantLen)
			}
			got, err := aeadDecrypt(key, blob, aad)
			if err != nil {
				t.Fatalf("aeadDecrypt() err = %v, want nil", err)
			}
			if !bytes.Equal(got, tc.plaintext) {
				t.Errorf("round trip = %x, want %x", got, tc.plaintext)
			}
		})
	}
}

func TestAEADRejectsTamperedCiphertext(t *testing.T) {
	key := random.GetRandomBytes(32)
	aad := []byte("session-1|2|1")
	blob, err := aeadEncrypt(key, []byte("quick brown fox"), aad)
	if err != nil {
		t.Fatalf("aeadEncrypt() err = %v, want nil", err)
	}
	// Flipping any single bit, in the nonce, ciphertext, or tag, must fail
	// authentication.
	for i := range blob {
		tampered := append([]byte{}, blob...)
		tampered[i] ^= 0x01
		if _, err := aeadDecrypt(key, tampered, aad); !errors.Is(err, ErrDecryptionFailure) {
			t.Errorf("aeadDecrypt(tampered byte %d) err = %v, want ErrDecryptionFailure", i, err)
		}
	}
}

func TestAEADRejectsWrongKeyAndAAD(t *testing.T) {
	key := random.GetRandomBytes(32)
	aad := []byte("session-1|1|3")
	blob, err := aeadEncrypt(key, []byte("payload"), aad)
	if err != nil {
		t.Fatalf("aeadEncrypt() err = %v, want nil", err)
	}
	otherKey := append([]byte{}, key...)
	otherKey[0] ^= 0xff
	if _, err := aeadDecrypt(otherKey, blob, aad); !errors.Is(err, ErrDecryptionFailure) {
		t.Errorf("aeadDecrypt(wrong key) err = %v, want ErrDecryptionFailure", err)
	}
	if _, err := aeadDecrypt(key, blob, []byte("session-1|3|1")); !errors.Is(err, ErrDecryptionFailure) {
		t.Errorf("aeadDecrypt(wrong aad) err = %v, want ErrDecryptionFailure", err)
	}
}

func TestAEADRejectsShortCiphertext(t *testing.T) {
	key := random.GetRandomBytes(32)
	short := random.GetRandomBytes(uint32(constants.AESGCMNonceBytes + constants.AESGCMTagBytes - 1))
	if _, err := aeadDecrypt(key, short, nil); !errors.Is(err, ErrDecryptionFailure) {
		t.Errorf("aeadDecrypt(short blob) err = %v, want ErrDecryptionFailure", err)
	}
}
