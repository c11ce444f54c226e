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

// The basic secure aggregation client: a single Shamir-shared mask seed and a
// strictly forward five-phase session.

package client

import (
	"fmt"
	"sync"

	"github.com/edgeml-ai/secagg/constants"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/finitefield"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/secrets"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/shamir"
	glog "github.com/golang/glog"
	"github.com/google/tink/go/subtle/random"
)

// BasicClient drives one client through the basic aggregation protocol:
//
//	idle --BeginSession--> shareKeys --GenerateKeyShares--> maskedInput
//	     --MaskModelUpdate--> unmasking --ProvideUnmaskingShares--> completed
//	     --Reset--> idle
//
// Each transition is callable exactly once per session. An operation invoked
// out of phase fails with ErrWrongPhase and has no side effect. All methods
// are safe for concurrent use; exactly one mutation of protocol state is in
// flight at a time.
type BasicClient struct {
	mu sync.Mutex

	phase  ProtocolPhase
	config SessionConfig
	seed   []byte
	shares []secrets.Share
}

// NewBasicClient returns a client in the idle phase.
func NewBasicClient() *BasicClient {
	return &BasicClient{phase: PhaseIdle}
}

// Phase returns the client's current protocol phase.
func (c *BasicClient) Phase() ProtocolPhase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *BasicClient) requirePhase(op string, want ProtocolPhase) error {
	if c.phase != want {
		return fmt.Errorf("%w: %s requires phase %v, client is in %v", ErrWrongPhase, op, want, c.phase)
	}
	return nil
}

// BeginSession binds the client to a session and enters the shareKeys phase.
func (c *BasicClient) BeginSession(config SessionConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase("BeginSession", PhaseIdle); err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid session config: %v", err)
	}
	c.config = config
	c.phase = PhaseShareKeys
	glog.Infof("Client %d began basic session %q round %d", config.MyIndex, config.SessionID, config.RoundID)
	return nil
}

// GenerateKeyShares generates a fresh random mask seed, Shamir-splits it into
// TotalClients shares at the session threshold, and returns one serialized
// single-share bundle per destination participant index. The caller is
// responsible for delivering each bundle to its peer.
func (c *BasicClient) GenerateKeyShares() (map[int][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase("GenerateKeyShares", PhaseShareKeys); err != nil {
		return nil, err
	}
	seed := random.GetRandomBytes(constants.SeedBytes)
	split, err := shamir.SplitSecret(secrets.Metadata{
		Field:     finitefield.P130,
		NumShares: c.config.TotalClients,
		Threshold: c.config.Threshold,
		ChunkSize: constants.SeedChunkBytes,
	}, seed)
	if err != nil {
		return nil, fmt.Errorf("splitting mask seed: %v", err)
	}

	bundles := make(map[int][]byte, len(split.Shares))
	for _, share := range split.Shares {
		bundle, err := MarshalShareBundle([]secrets.Share{share})
		if err != nil {
			return nil, fmt.Errorf("marshaling share for participant %d: %v", share.X, err)
		}
		bundles[share.X] = bundle
	}

	c.seed = seed
	c.shares = split.Shares
	c.phase = PhaseMaskedInput
	return bundles, nil
}

// MaskModelUpdate additively combines the payload with a keystream derived
// from the session mask seed. Output length always equals input length.
func (c *BasicClient) MaskModelUpdate(data []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase("MaskModelUpdate", PhaseMaskedInput); err != nil {
		return nil, err
	}
	keystream, err := GenerateMaskBytes(c.seed, len(data))
	if err != nil {
		return nil, fmt.Errorf("deriving keystream: %v", err)
	}
	masked := make([]byte, len(data))
	for i := range data {
		masked[i] = data[i] + keystream[i]
	}
	c.phase = PhaseUnmasking
	return masked, nil
}

// ProvideUnmaskingShares returns, for each dropped participant index, the
// mask-seed share that was destined for it, serialized as one bundle. The
// aggregator uses these stand-in shares to reconstruct the seed and recover
// the contribution the dropped peers can no longer help unmask.
func (c *BasicClient) ProvideUnmaskingShares(droppedIndices []int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requirePhase("ProvideUnmaskingShares", PhaseUnmasking); err != nil {
		return nil, err
	}
	shares := make([]secrets.Share, 0, len(droppedIndices))
	for _, idx := range droppedIndices {
		if idx < 1 || idx > len(c.shares) {
			return nil, fmt.Errorf("no stored share for dropped participant %d", idx)
		}
		shares = append(shares, c.shares[idx-1])
	}
	bundle, err := MarshalShareBundle(shares)
	if err != nil {
		return nil, fmt.Errorf("marshaling unmasking shares: %v", err)
	}
	c.phase = PhaseCompleted
	return bundle, nil
}

// Reset erases all session state and returns the client to idle, making the
// instance reusable for a new round.
func (c *BasicClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.seed {
		c.seed[i] = 0
	}
	c.seed = nil
	c.shares = nil
	c.config = SessionConfig{}
	c.phase = PhaseIdle
}
