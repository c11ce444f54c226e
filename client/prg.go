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

// Deterministic counter-mode pseudo-random generator used to derive mask
// streams from shared seeds.

package client

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// GenerateMaskStream deterministically expands seed into count integers in
// [0, numRange). Output i is SHA-256(seed || BE32(i)), with the first 4 digest
// bytes interpreted as a big endian unsigned 32-bit integer and reduced modulo
// numRange.
//
// The aggregator and every client recompute identical streams from the same
// seed, so the construction is fixed: changing it breaks mask cancellation
// across implementations.
func GenerateMaskStream(seed []byte, numRange uint64, count int) ([]uint64, error) {
	if numRange == 0 {
		return nil, fmt.Errorf("numRange must be positive")
	}
	if count < 0 {
		return nil, fmt.Errorf("count must be non-negative, got %d", count)
	}
	if uint64(count) > 1<<32 {
		return nil, fmt.Errorf("count %d exceeds the 32-bit counter space", count)
	}
	out := make([]uint64, count)
	buf := make([]byte, 0, len(seed)+4)
	buf = append(buf, seed...)
	for i := 0; i < count; i++ {
		block := binary.BigEndian.AppendUint32(buf, uint32(i))
		digest := sha256.Sum256(block)
		out[i] = uint64(binary.BigEndian.Uint32(digest[:4])) % numRange
	}
	return out, nil
}

// GenerateMaskBytes is a byte-oriented convenience over GenerateMaskStream for
// masking raw payloads: each output byte is the corresponding stream value
// reduced modulo 256.
func GenerateMaskBytes(seed []byte, count int) ([]byte, error) {
	stream, err := GenerateMaskStream(seed, 256, count)
	if err != nil {
		return nil, err
	}
	out := make([]byte, count)
	for i, v := range stream {
		out[i] = byte(v)
	}
	return out, nil
}
