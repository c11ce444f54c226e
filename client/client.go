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

// Package client implements the client side of the secure aggregation
// protocol: Shamir-based seed sharing, pairwise and self masking of quantized
// model updates, and dropout-tolerant unmasking support.
//
// Transport is out of scope. The external session orchestrator moves the byte
// blobs produced here (public keys, encrypted share blobs, masked vectors,
// unmask shares) between peers and tells the protocol which peers are active
// or dropped.
package client

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/edgeml-ai/secagg/internal/secret_sharing/secrets"
)

// Sentinel errors for the protocol failure classes. They are wrapped with
// call-site context, so test with errors.Is.
var (
	// ErrWrongPhase is returned when an operation is invoked outside the
	// protocol phase that permits it. The operation has no side effect.
	ErrWrongPhase = errors.New("operation invoked in wrong protocol phase")

	// ErrMissingPeerKeys is returned when per-peer cryptography is attempted
	// before the peer's public keys were received.
	ErrMissingPeerKeys = errors.New("peer public keys not received")

	// ErrDecryptionFailure is returned when an AEAD ciphertext fails
	// authentication. It is always surfaced, never swallowed.
	ErrDecryptionFailure = errors.New("share blob decryption failed")
)

// ProtocolPhase is the state of a basic secure aggregation session.
// Transitions are strictly forward; see BasicClient.
type ProtocolPhase int

const (
	// PhaseIdle is the state before a session begins and after a reset.
	PhaseIdle ProtocolPhase = iota
	// PhaseShareKeys is entered by BeginSession.
	PhaseShareKeys
	// PhaseMaskedInput is entered by GenerateKeyShares.
	PhaseMaskedInput
	// PhaseUnmasking is entered by MaskModelUpdate.
	PhaseUnmasking
	// PhaseCompleted is entered by ProvideUnmaskingShares.
	PhaseCompleted
)

func (p ProtocolPhase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseShareKeys:
		return "shareKeys"
	case PhaseMaskedInput:
		return "maskedInput"
	case PhaseUnmasking:
		return "unmasking"
	case PhaseCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown phase %d", int(p))
	}
}

// SessionConfig identifies one aggregation round and this client's place in
// it, together with the quantization parameters every participant must agree
// on.
type SessionConfig struct {
	// SessionID identifies the federation session; it domain-separates all
	// derived encryption keys.
	SessionID string `json:"sessionId"`
	// RoundID is the aggregation round within the session.
	RoundID int `json:"roundId"`
	// Threshold is the minimum number of Shamir shares needed to reconstruct
	// any shared seed. Must be in [1, TotalClients].
	Threshold int `json:"threshold"`
	// TotalClients is the number of participants in the round.
	TotalClients int `json:"totalClients"`
	// MyIndex is this client's 1-based participant index.
	MyIndex int `json:"myIndex"`

	// ClippingRange bounds the absolute value of update vector entries before
	// quantization.
	ClippingRange float64 `json:"clippingRange"`
	// TargetRange is the upper bound (inclusive) of quantized values.
	TargetRange uint64 `json:"targetRange"`
	// ModRange is the modulus for all masking arithmetic. Must leave room for
	// TotalClients updates of up to TargetRange each, and must not exceed
	// 2^32 because mask streams draw 32 bits per element.
	ModRange uint64 `json:"modRange"`
}

// Validate checks the structural invariants of the config.
func (c *SessionConfig) Validate() error {
	if c.TotalClients < 1 {
		return fmt.Errorf("totalClients must be at least 1, got %d", c.TotalClients)
	}
	if c.Threshold < 1 || c.Threshold > c.TotalClients {
		return fmt.Errorf("threshold must be in [1, %d], got %d", c.TotalClients, c.Threshold)
	}
	if c.MyIndex < 1 || c.MyIndex > c.TotalClients {
		return fmt.Errorf("myIndex must be in [1, %d], got %d", c.TotalClients, c.MyIndex)
	}
	if c.ClippingRange <= 0 {
		return fmt.Errorf("clippingRange must be positive, got %v", c.ClippingRange)
	}
	if c.TargetRange == 0 || c.TargetRange >= c.ModRange {
		return fmt.Errorf("targetRange must be in (0, modRange), got %d with modRange %d", c.TargetRange, c.ModRange)
	}
	if c.ModRange > 1<<32 {
		return fmt.Errorf("modRange must not exceed 2^32, got %d", c.ModRange)
	}
	if uint64(c.TotalClients) > (c.ModRange-1)/c.TargetRange {
		return fmt.Errorf("%d updates of up to targetRange %d can wrap modRange %d", c.TotalClients, c.TargetRange, c.ModRange)
	}
	return nil
}

const (
	shareBundleCountBytes = 2
	shareBundleIndexBytes = 4
	shareBundleLenBytes   = 2
)

// MarshalShareBundle serializes a list of Shamir shares into the wire format
// consumed by the orchestrator:
//
//	BE16(count) || count x ( BE32(index) || BE16(len) || value )
func MarshalShareBundle(shares []secrets.Share) ([]byte, error) {
	if len(shares) > 0xFFFF {
		return nil, fmt.Errorf("too many shares for one bundle: %d", len(shares))
	}
	size := shareBundleCountBytes
	for _, s := range shares {
		if s.X < 1 {
			return nil, fmt.Errorf("invalid share index: %d", s.X)
		}
		if len(s.Value) > 0xFFFF {
			return nil, fmt.Errorf("share value too long: %d bytes", len(s.Value))
		}
		size += shareBundleIndexBytes + shareBundleLenBytes + len(s.Value)
	}
	out := make([]byte, 0, size)
	out = binary.BigEndian.AppendUint16(out, uint16(len(shares)))
	for _, s := range shares {
		out = binary.BigEndian.AppendUint32(out, uint32(s.X))
		out = binary.BigEndian.AppendUint16(out, uint16(len(s.Value)))
		out = append(out, s.Value...)
	}
	return out, nil
}

// UnmarshalShareBundle parses the wire format produced by MarshalShareBundle.
func UnmarshalShareBundle(b []byte) ([]secrets.Share, error) {
	if len(b) < shareBundleCountBytes {
		return nil, fmt.Errorf("share bundle too short: %d bytes", len(b))
	}
	count := int(binary.BigEndian.Uint16(b))
	offset := shareBundleCountBytes
	shares := make([]secrets.Share, 0, count)
	for i := 0; i < count; i++ {
		if len(b) < offset+shareBundleIndexBytes+shareBundleLenBytes {
			return nil, fmt.Errorf("share bundle truncated at share %d", i)
		}
		x := int(binary.BigEndian.Uint32(b[offset:]))
		offset += shareBundleIndexBytes
		valueLen := int(binary.BigEndian.Uint16(b[offset:]))
		offset += shareBundleLenBytes
		if len(b) < offset+valueLen {
			return nil, fmt.Errorf("share bundle truncated at share %d value", i)
		}
		shares = append(shares, secrets.Share{
			X:     x,
			Value: append([]byte(nil), b[offset:offset+valueLen]...),
		})
		offset += valueLen
	}
	if offset != len(b) {
		return nil, fmt.Errorf("share bundle has %d trailing bytes", len(b)-offset)
	}
	return shares, nil
}
