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

// The full pairwise secure aggregation client ("SecAgg+"): pairwise masks
// plus a self mask per client, with both kinds of secret material
// Shamir-shared across the federation for dropout tolerance.

package client

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/edgeml-ai/secagg/constants"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/finitefield"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/secrets"
	"github.com/edgeml-ai/secagg/internal/secret_sharing/shamir"
	glog "github.com/golang/glog"
	"github.com/google/tink/go/subtle/random"
)

// peerShares is the secret material one peer entrusted to this client: one
// share of its round seed and one share of its first private key.
type peerShares struct {
	rdSeed secrets.Share
	sk1    secrets.Share
}

// PairwiseClient is one participant in the pairwise masking protocol. A
// plaintext update vector is quantized, offset by one pairwise mask stream per
// peer (added or subtracted depending on index order, so the terms cancel in
// the aggregate) and by a self-mask stream, all modulo the session's ModRange.
//
// All methods are safe for concurrent use; exactly one mutation of protocol
// state is in flight at a time. The instance lives for a single round.
type PairwiseClient struct {
	mu sync.Mutex

	config SessionConfig
	kx     *keyExchange

	// rdSeed derives this client's self mask. It is Shamir-shared so the
	// aggregator can cancel the self mask once enough active peers respond;
	// it carries no pairwise-mask material.
	rdSeed []byte

	sharesGenerated bool
	received        map[int]peerShares
}

// NewPairwiseClient creates a client for one aggregation round and generates
// its private seed material.
func NewPairwiseClient(config SessionConfig) (*PairwiseClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %v", err)
	}
	kx, err := newKeyExchange(config.SessionID)
	if err != nil {
		return nil, fmt.Errorf("generating key pairs: %v", err)
	}
	return &PairwiseClient{
		config:   config,
		kx:       kx,
		rdSeed:   random.GetRandomBytes(constants.SeedBytes),
		received: make(map[int]peerShares),
	}, nil
}

// GetPublicKeys exposes this client's two raw Curve25519 public keys for
// distribution to the federation.
func (c *PairwiseClient) GetPublicKeys() PeerKeyBundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kx.publicKeys()
}

// ReceivePeerPublicKeys stores every peer's key bundle and derives one
// symmetric share encryption key per peer from PK2.
func (c *PairwiseClient) ReceivePeerPublicKeys(allKeys map[int]PeerKeyBundle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kx.receivePeerPublicKeys(allKeys)
}

// GenerateEncryptedShares Shamir-splits this client's round seed and first
// private key across all participants and returns, per peer index, an
// encrypted blob carrying that peer's two shares. If no peer keys were
// received the result is empty: share distribution is skipped but
// self-masking still proceeds.
func (c *PairwiseClient) GenerateEncryptedShares() (map[int][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.kx.hasPeerKeys() {
		glog.Warningf("Client %d has no peer keys; skipping share distribution", c.config.MyIndex)
		return map[int][]byte{}, nil
	}

	metadata := secrets.Metadata{
		Field:     finitefield.P130,
		NumShares: c.config.TotalClients,
		Threshold: c.config.Threshold,
		ChunkSize: constants.SeedChunkBytes,
	}
	rdSplit, err := shamir.SplitSecret(metadata, c.rdSeed)
	if err != nil {
		return nil, fmt.Errorf("splitting round seed: %v", err)
	}
	sk1Split, err := shamir.SplitSecret(metadata, c.kx.privateKey1())
	if err != nil {
		return nil, fmt.Errorf("splitting private key: %v", err)
	}

	// This client keeps the shares destined for itself; it may be asked for
	// its own share of its own secrets at unmask time like any other peer.
	c.received[c.config.MyIndex] = peerShares{
		rdSeed: rdSplit.Shares[c.config.MyIndex-1],
		sk1:    sk1Split.Shares[c.config.MyIndex-1],
	}

	encrypted := make(map[int][]byte)
	for peer := 1; peer <= c.config.TotalClients; peer++ {
		if peer == c.config.MyIndex {
			continue
		}
		// The payload is a two-share bundle: the peer's share of rd_seed
		// first, its share of sk1 second.
		payload, err := MarshalShareBundle([]secrets.Share{
			rdSplit.Shares[peer-1],
			sk1Split.Shares[peer-1],
		})
		if err != nil {
			return nil, fmt.Errorf("marshaling payload for peer %d: %v", peer, err)
		}
		blob, err := c.kx.encryptForPeer(peer, payload)
		if err != nil {
			return nil, fmt.Errorf("encrypting payload for peer %d: %w", peer, err)
		}
		encrypted[peer] = blob
	}
	c.sharesGenerated = true
	return encrypted, nil
}

// ReceiveEncryptedShares decrypts each sender's blob and stores the carried
// share fragments for later reconstruction. A failed decryption surfaces as
// an error and leaves no partial state.
func (c *PairwiseClient) ReceiveEncryptedShares(blobs map[int][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	decrypted := make(map[int]peerShares, len(blobs))
	for sender, blob := range blobs {
		payload, err := c.kx.decryptFromPeer(sender, blob)
		if err != nil {
			return fmt.Errorf("decrypting shares from peer %d: %w", sender, err)
		}
		shares, err := UnmarshalShareBundle(payload)
		if err != nil {
			return fmt.Errorf("parsing shares from peer %d: %v", sender, err)
		}
		if len(shares) != 2 {
			return fmt.Errorf("peer %d sent %d shares, want 2", sender, len(shares))
		}
		decrypted[sender] = peerShares{rdSeed: shares[0], sk1: shares[1]}
	}
	for sender, shares := range decrypted {
		c.received[sender] = shares
	}
	return nil
}

// MaskModelUpdate quantizes values and applies the pairwise and self mask
// streams modulo ModRange. If peer setup never happened, pairwise terms are
// omitted and only the self mask is applied; that degraded mode provides no
// cross-peer privacy and is intended for single-participant testing.
func (c *PairwiseClient) MaskModelUpdate(values []float64) ([]uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	quantized, err := Quantize(values, c.config.ClippingRange, c.config.TargetRange)
	if err != nil {
		return nil, fmt.Errorf("quantizing update: %v", err)
	}
	masked := make([]uint64, len(quantized))
	mod := c.config.ModRange
	for i, v := range quantized {
		masked[i] = v % mod
	}

	if c.kx.hasPeerKeys() && c.sharesGenerated {
		for peer := 1; peer <= c.config.TotalClients; peer++ {
			if peer == c.config.MyIndex {
				continue
			}
			bundle, ok := c.kx.peerBundle(peer)
			if !ok {
				return nil, fmt.Errorf("%w: peer %d", ErrMissingPeerKeys, peer)
			}
			shared, err := SharedPairSecret(c.kx.privateKey1(), bundle.PK1)
			if err != nil {
				return nil, fmt.Errorf("deriving pair secret with peer %d: %v", peer, err)
			}
			stream, err := GenerateMaskStream(PairwiseMaskSeed(shared, c.config.MyIndex, peer), mod, len(masked))
			if err != nil {
				return nil, fmt.Errorf("deriving pairwise mask for peer %d: %v", peer, err)
			}
			// The smaller index adds, the larger subtracts; summed across the
			// federation the pairwise terms cancel.
			for i, m := range stream {
				if c.config.MyIndex < peer {
					masked[i] = (masked[i] + m) % mod
				} else {
					masked[i] = (masked[i] + mod - m) % mod
				}
			}
		}
	} else {
		glog.Warningf("Client %d masking without pairwise terms (no peer setup)", c.config.MyIndex)
	}

	selfStream, err := GenerateMaskStream(SelfMaskSeed(c.rdSeed, c.config.MyIndex), mod, len(masked))
	if err != nil {
		return nil, fmt.Errorf("deriving self mask: %v", err)
	}
	for i, m := range selfStream {
		masked[i] = (masked[i] + m) % mod
	}
	return masked, nil
}

// Unmask returns the share material the aggregator needs to finish the round:
// for every active peer, this client's share of that peer's round seed; for
// every dropped peer, this client's share of that peer's first private key. The returned index slice is activeIndices followed by
// droppedIndices, matched one-to-one with the share blobs. A missing stored
// share is a protocol error, never a silent nil entry.
func (c *PairwiseClient) Unmask(activeIndices, droppedIndices []int) ([]int, [][]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	peerIndices := make([]int, 0, len(activeIndices)+len(droppedIndices))
	shares := make([][]byte, 0, len(activeIndices)+len(droppedIndices))

	appendShare := func(peer int, share secrets.Share, kind string) error {
		bundle, err := MarshalShareBundle([]secrets.Share{share})
		if err != nil {
			return fmt.Errorf("marshaling %s share of peer %d: %v", kind, peer, err)
		}
		peerIndices = append(peerIndices, peer)
		shares = append(shares, bundle)
		return nil
	}

	for _, peer := range activeIndices {
		stored, ok := c.received[peer]
		if !ok {
			return nil, nil, fmt.Errorf("no stored seed share for active peer %d", peer)
		}
		if err := appendShare(peer, stored.rdSeed, "seed"); err != nil {
			return nil, nil, err
		}
	}
	for _, peer := range droppedIndices {
		stored, ok := c.received[peer]
		if !ok {
			return nil, nil, fmt.Errorf("no stored key share for dropped peer %d", peer)
		}
		if err := appendShare(peer, stored.sk1, "key"); err != nil {
			return nil, nil, err
		}
	}
	return peerIndices, shares, nil
}

// Reset erases all key material, shares, and seeds. The instance must not be
// used for another round; create a new client instead.
func (c *PairwiseClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.rdSeed {
		c.rdSeed[i] = 0
	}
	c.rdSeed = nil
	c.kx = nil
	c.received = make(map[int]peerShares)
	c.sharesGenerated = false
}

// PairwiseMaskSeed derives the PRG seed for the pairwise mask stream between
// participants i and j from the pair's shared secret (SharedPairSecret of
// either side's first key pair). The pair is encoded in canonical (min, max)
// order, so both peers derive the identical stream and their opposite-signed
// terms cancel exactly in the aggregate.
func PairwiseMaskSeed(sharedSecret []byte, i, j int) []byte {
	lo, hi := i, j
	if lo > hi {
		lo, hi = hi, lo
	}
	h := sha256.New()
	h.Write([]byte(constants.PairwiseMaskLabel))
	h.Write(sharedSecret)
	h.Write(binary.BigEndian.AppendUint32(nil, uint32(lo)))
	h.Write(binary.BigEndian.AppendUint32(nil, uint32(hi)))
	return h.Sum(nil)
}

// SelfMaskSeed derives the PRG seed for a participant's self-mask stream from
// its round seed. The self seed is never transmitted; it becomes recoverable
// only when enough shares of rdSeed are combined during the unmask phase.
func SelfMaskSeed(rdSeed []byte, index int) []byte {
	h := sha256.New()
	h.Write([]byte(constants.SelfMaskLabel))
	h.Write(rdSeed)
	h.Write(binary.BigEndian.AppendUint32(nil, uint32(index)))
	return h.Sum(nil)
}
