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

// Utility functions for AEAD encryption and decryption of per-peer share
// blobs.

package client

import (
	"fmt"

	"github.com/google/tink/go/aead/subtle"
)

// aeadEncrypt encrypts plaintext with AES-256-GCM under key, binding aad as
// associated data. The returned blob is in the combined format: a 12-byte
// random nonce, the ciphertext, and a 16-byte authentication tag.
func aeadEncrypt(key, plaintext, aad []byte) ([]byte, error) {
	cipher, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("unable to create AES-GCM cipher: %v", err)
	}
	ciphertext, err := cipher.Encrypt(plaintext, aad)
	if err != nil {
		return nil, fmt.Errorf("unable to encrypt share blob: %v", err)
	}
	return ciphertext, nil
}

// aeadDecrypt reverses aeadEncrypt. A tampered blob or a mismatched key fails
// authentication and surfaces as ErrDecryptionFailure.
func aeadDecrypt(key, ciphertext, aad []byte) ([]byte, error) {
	cipher, err := subtle.NewAESGCM(key)
	if err != nil {
		return nil, fmt.Errorf("unable to create AES-GCM cipher: %v", err)
	}
	plaintext, err := cipher.Decrypt(ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailure, err)
	}
	return plaintext, nil
}
