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

// Package aggregator implements the server-side counterpart of the pairwise
// secure aggregation protocol: it sums masked update vectors, collects unmask
// shares, cancels self masks via reconstructed round seeds, and recomputes
// the pairwise terms that survive toward dropped participants from their
// reconstructed first private keys.
//
// The aggregator never sees an individual client's plaintext update: the
// pairwise streams covering each update are seeded from pair-shared ECDH
// secrets it cannot derive. Until enough unmask shares arrive, a client's
// seed reconstructs to an empty value and the client simply counts as
// unrecovered; "not enough shares yet" is an expected intermediate state, not
// an error.
package aggregator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/edgeml-ai/secagg/client"
	"github.com/edgeml-ai/secagg/constants"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/finitefield"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/secrets"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/shamir"
	glog "github.com/golang/glog"
)

// Config carries the round parameters the aggregator shares with every
// client. The quantization parameters must match the clients' SessionConfig
// exactly.
type Config struct {
	Threshold     int     `json:"threshold"`
	TotalClients  int     `json:"totalClients"`
	ClippingRange float64 `json:"clippingRange"`
	TargetRange   uint64  `json:"targetRange"`
	ModRange      uint64  `json:"modRange"`
}

// Validate checks the structural invariants of the config.
func (c *Config) Validate() error {
	if c.TotalClients < 1 {
		return fmt.Errorf("totalClients must be at least 1, got %d", c.TotalClients)
	}
	if c.Threshold < 1 || c.Threshold > c.TotalClients {
		return fmt.Errorf("threshold must be in [1, %d], got %d", c.TotalClients, c.Threshold)
	}
	if c.ClippingRange <= 0 {
		return fmt.Errorf("clippingRange must be positive, got %v", c.ClippingRange)
	}
	if c.TargetRange == 0 || c.TargetRange >= c.ModRange {
		return fmt.Errorf("targetRange must be in (0, modRange), got %d with modRange %d", c.TargetRange, c.ModRange)
	}
	// Mask streams draw 32 bits per element; a wider modulus cannot be masked
	// uniformly, and the bound keeps all modular adds overflow-free.
	if c.ModRange > 1<<32 {
		return fmt.Errorf("modRange must not exceed 2^32, got %d", c.ModRange)
	}
	if uint64(c.TotalClients) > (c.ModRange-1)/c.TargetRange {
		return fmt.Errorf("%d updates of up to targetRange %d can wrap modRange %d", c.TotalClients, c.TargetRange, c.ModRange)
	}
	return nil
}

// Aggregator accumulates one aggregation round. All methods are safe for
// concurrent use.
type Aggregator struct {
	mu sync.Mutex

	config Config

	vectorLen  int
	sum        []uint64
	submitters []int

	// seedShares[p] maps a share's X coordinate to the collected share of
	// peer p's round seed; keyShares likewise for peer p's first private key.
	seedShares map[int]map[int]secrets.Share
	keyShares  map[int]map[int]secrets.Share

	// peerKeys holds the participants' published key bundles; Sum needs the
	// submitters' first public keys to recompute pairwise terms toward
	// dropped participants.
	peerKeys map[int]client.PeerKeyBundle
}

// New creates an aggregator for one round.
func New(config Config) (*Aggregator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregator config: %v", err)
	}
	return &Aggregator{
		config:     config,
		seedShares: make(map[int]map[int]secrets.Share),
		keyShares:  make(map[int]map[int]secrets.Share),
		peerKeys:   make(map[int]client.PeerKeyBundle),
	}, nil
}

// RegisterPublicKeys records the participants' published key bundles. The
// bundles must be registered before Sum when the round has dropped
// participants.
func (a *Aggregator) RegisterPublicKeys(keys map[int]client.PeerKeyBundle) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for peer, bundle := range keys {
		a.peerKeys[peer] = bundle
	}
}

// AddMaskedUpdate accumulates one client's masked vector into the running
// modular sum. Every submitted vector must have the same length and values
// below ModRange.
func (a *Aggregator) AddMaskedUpdate(peer int, masked []uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if peer < 1 || peer > a.config.TotalClients {
		return fmt.Errorf("participant index %d out of range [1, %d]", peer, a.config.TotalClients)
	}
	for _, p := range a.submitters {
		if p == peer {
			return fmt.Errorf("participant %d already submitted an update", peer)
		}
	}
	if a.sum == nil {
		a.vectorLen = len(masked)
		a.sum = make([]uint64, a.vectorLen)
	}
	if len(masked) != a.vectorLen {
		return fmt.Errorf("vector length %d does not match round length %d", len(masked), a.vectorLen)
	}
	for i, v := range masked {
		if v >= a.config.ModRange {
			return fmt.Errorf("masked value %d at position %d is not below modRange %d", v, i, a.config.ModRange)
		}
		a.sum[i] = (a.sum[i] + v) % a.config.ModRange
	}
	a.submitters = append(a.submitters, peer)
	glog.Infof("Aggregated masked update from participant %d (%d/%d)", peer, len(a.submitters), a.config.TotalClients)
	return nil
}

// AddUnmaskResponse ingests one client's unmask output. peerIndices and
// shareBundles are the parallel arrays produced by PairwiseClient.Unmask;
// droppedIndices identifies which entries carry key shares instead of seed
// shares.
func (a *Aggregator) AddUnmaskResponse(peerIndices []int, shareBundles [][]byte, droppedIndices []int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(peerIndices) != len(shareBundles) {
		return fmt.Errorf("got %d peer indices but %d share blobs", len(peerIndices), len(shareBundles))
	}
	dropped := make(map[int]bool, len(droppedIndices))
	for _, p := range droppedIndices {
		dropped[p] = true
	}
	for i, peer := range peerIndices {
		shares, err := client.UnmarshalShareBundle(shareBundles[i])
		if err != nil {
			return fmt.Errorf("parsing share blob for peer %d: %v", peer, err)
		}
		if len(shares) != 1 {
			return fmt.Errorf("share blob for peer %d carries %d shares, want 1", peer, len(shares))
		}
		target := a.seedShares
		if dropped[peer] {
			target = a.keyShares
		}
		if target[peer] == nil {
			target[peer] = make(map[int]secrets.Share)
		}
		target[peer][shares[0].X] = shares[0]
	}
	return nil
}

// Unrecovered lists the submitting participants whose mask seeds cannot be
// reconstructed yet because fewer than Threshold seed shares have arrived.
func (a *Aggregator) Unrecovered() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []int
	for _, peer := range a.submitters {
		if len(a.seedShares[peer]) < a.config.Threshold {
			out = append(out, peer)
		}
	}
	return out
}

// Sum finishes the round and returns the dequantized sum of the plaintext
// updates. Pairwise terms between two submitters cancel in the modular sum by
// construction, so only the self masks and the terms submitters applied
// toward dropped participants have to be removed: self masks from each
// submitter's reconstructed round seed, dropped-participant terms from the
// dropped peer's reconstructed first private key and the submitters'
// registered public keys. It fails if any submitter's seed or any dropped
// participant's key is still unrecoverable.
func (a *Aggregator) Sum() ([]float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.submitters) == 0 {
		return nil, fmt.Errorf("no masked updates submitted")
	}
	// Every configured participant must be a submitter or reported dropped;
	// pairwise terms toward an unaccounted participant would stay in the sum.
	accounted := make(map[int]bool, a.config.TotalClients)
	for _, peer := range a.submitters {
		accounted[peer] = true
	}
	for peer := range a.keyShares {
		accounted[peer] = true
	}
	for peer := 1; peer <= a.config.TotalClients; peer++ {
		if !accounted[peer] {
			return nil, fmt.Errorf("participant %d neither submitted an update nor was reported dropped", peer)
		}
	}

	total := make([]uint64, a.vectorLen)
	copy(total, a.sum)
	mod := a.config.ModRange

	for _, peer := range a.submitters {
		seed, err := a.reconstructLocked(a.seedShares[peer])
		if err != nil {
			return nil, fmt.Errorf("reconstructing seed of participant %d: %v", peer, err)
		}
		if len(seed) == 0 {
			return nil, fmt.Errorf("participant %d has %d of %d required seed shares", peer, len(a.seedShares[peer]), a.config.Threshold)
		}
		selfStream, err := client.GenerateMaskStream(client.SelfMaskSeed(seed, peer), mod, a.vectorLen)
		if err != nil {
			return nil, fmt.Errorf("deriving self mask of participant %d: %v", peer, err)
		}
		for i, m := range selfStream {
			total[i] = (total[i] + mod - m) % mod
		}
	}

	droppedPeers := make([]int, 0, len(a.keyShares))
	for peer := range a.keyShares {
		droppedPeers = append(droppedPeers, peer)
	}
	sort.Ints(droppedPeers)
	for _, dropped := range droppedPeers {
		key, err := a.reconstructLocked(a.keyShares[dropped])
		if err != nil {
			return nil, fmt.Errorf("reconstructing key of dropped participant %d: %v", dropped, err)
		}
		if len(key) == 0 {
			return nil, fmt.Errorf("dropped participant %d has %d of %d required key shares", dropped, len(a.keyShares[dropped]), a.config.Threshold)
		}
		for _, peer := range a.submitters {
			if peer == dropped {
				continue
			}
			bundle, ok := a.peerKeys[peer]
			if !ok {
				return nil, fmt.Errorf("no registered public keys for participant %d", peer)
			}
			shared, err := client.SharedPairSecret(key, bundle.PK1)
			if err != nil {
				return nil, fmt.Errorf("deriving pair secret of participants %d and %d: %v", peer, dropped, err)
			}
			stream, err := client.GenerateMaskStream(client.PairwiseMaskSeed(shared, peer, dropped), mod, a.vectorLen)
			if err != nil {
				return nil, fmt.Errorf("deriving pairwise mask of participants %d and %d: %v", peer, dropped, err)
			}
			// Undo the term with the inverse of the sign the submitter
			// applied.
			for i, m := range stream {
				if peer < dropped {
					total[i] = (total[i] + mod - m) % mod
				} else {
					total[i] = (total[i] + m) % mod
				}
			}
		}
	}

	return client.DequantizeSum(total, a.config.ClippingRange, a.config.TargetRange, len(a.submitters))
}

// ReconstructDroppedKey reconstructs a dropped participant's first private
// key from the collected key shares; Sum performs the same reconstruction to
// cancel the participant's surviving pairwise terms. Below the threshold it
// returns an empty slice and no error, mirroring the insufficient-shares
// policy of the sharing scheme.
func (a *Aggregator) ReconstructDroppedKey(peer int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reconstructLocked(a.keyShares[peer])
}

func (a *Aggregator) reconstructLocked(byX map[int]secrets.Share) ([]byte, error) {
	shares := make([]secrets.Share, 0, len(byX))
	for _, s := range byX {
		shares = append(shares, s)
	}
	return shamir.Reconstruct(secrets.Split{
		Metadata: secrets.Metadata{
			Field:     finitefield.P130,
			NumShares: a.config.TotalClients,
			Threshold: a.config.Threshold,
			ChunkSize: constants.SeedChunkBytes,
		},
		Shares:    shares,
		SecretLen: constants.SeedBytes,
	})
}
