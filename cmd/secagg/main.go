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

// This binary is the main entrypoint for the secagg command line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"flag"
	"github.com/edgeml-ai/secagg/aggregator"
	"github.com/edgeml-ai/secagg/client"
	glog "github.com/golang/glog"
	"github.com/google/subcommands"
	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// The current version, displayed via the `version` subcommand.
const secaggVersion string = "0.1.0"

// simulationConfig mirrors the YAML file accepted by `secagg simulate`.
type simulationConfig struct {
	NumClients    int     `json:"numClients"`
	Threshold     int     `json:"threshold"`
	VectorLen     int     `json:"vectorLen"`
	Dropped       []int   `json:"dropped"`
	ClippingRange float64 `json:"clippingRange"`
	TargetRange   uint64  `json:"targetRange"`
	ModRange      uint64  `json:"modRange"`
}

func defaultSimulationConfig() simulationConfig {
	return simulationConfig{
		NumClients:    5,
		Threshold:     3,
		VectorLen:     8,
		ClippingRange: 4.0,
		TargetRange:   1 << 16,
		ModRange:      1 << 24,
	}
}

// simulateCmd handles CLI options for the simulate command.
type simulateCmd struct {
	configFile string
	numClients int
	threshold  int
	vectorLen  int
	dropped    string
}

func (*simulateCmd) Name() string { return "simulate" }
func (*simulateCmd) Synopsis() string {
	return "runs an in-process federation through one secure aggregation round"
}
func (*simulateCmd) Usage() string {
	return `Usage: secagg simulate [--config-file=<config_file>] [--clients=N] [--threshold=T] [--vector-len=L] [--dropped=3,5]

Examples:
  Run a 5-client round with threshold 3:
    $ secagg simulate --clients=5 --threshold=3

  Run a round where clients 3 and 5 drop out before unmasking:
    $ secagg simulate --clients=5 --threshold=3 --dropped=3,5

  Run a round described by a YAML config:
    $ secagg simulate --config-file=simulation.yaml

Flags:
`
}

func (s *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.configFile, "config-file", "", "Path to a YAML simulation config")
	f.IntVar(&s.numClients, "clients", 0, "Number of federation participants")
	f.IntVar(&s.threshold, "threshold", 0, "Shamir reconstruction threshold")
	f.IntVar(&s.vectorLen, "vector-len", 0, "Length of the simulated update vectors")
	f.StringVar(&s.dropped, "dropped", "", "Comma-separated participant indices that drop out")
}

func (s *simulateCmd) loadConfig() (simulationConfig, error) {
	cfg := defaultSimulationConfig()
	if s.configFile != "" {
		raw, err := os.ReadFile(s.configFile)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file %q: %v", s.configFile, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %q: %v", s.configFile, err)
		}
	}
	if s.numClients != 0 {
		cfg.NumClients = s.numClients
	}
	if s.threshold != 0 {
		cfg.Threshold = s.threshold
	}
	if s.vectorLen != 0 {
		cfg.VectorLen = s.vectorLen
	}
	if s.dropped != "" {
		cfg.Dropped = nil
		for _, part := range strings.Split(s.dropped, ",") {
			idx, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return cfg, fmt.Errorf("invalid dropped index %q: %v", part, err)
			}
			cfg.Dropped = append(cfg.Dropped, idx)
		}
	}
	return cfg, nil
}

func (s *simulateCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := s.loadConfig()
	if err != nil {
		glog.Errorf("Failed to load simulation config: %v", err)
		return subcommands.ExitUsageError
	}
	sum, err := runSimulation(cfg)
	if err != nil {
		glog.Errorf("Simulation failed: %v", err)
		return subcommands.ExitFailure
	}
	fmt.Println("Recovered aggregate:")
	for i, v := range sum {
		fmt.Printf("  [%d] %.4f\n", i, v)
	}
	return subcommands.ExitSuccess
}

// runSimulation drives a full pairwise aggregation round with in-memory
// message delivery: key exchange, encrypted share distribution, masking,
// dropout, unmasking, and final sum recovery.
func runSimulation(cfg simulationConfig) ([]float64, error) {
	dropped := make(map[int]bool, len(cfg.Dropped))
	for _, idx := range cfg.Dropped {
		if idx < 1 || idx > cfg.NumClients {
			return nil, fmt.Errorf("dropped index %d out of range [1, %d]", idx, cfg.NumClients)
		}
		dropped[idx] = true
	}
	numActive := cfg.NumClients - len(dropped)
	if numActive < cfg.Threshold {
		return nil, fmt.Errorf("only %d active participants, need at least the threshold %d", numActive, cfg.Threshold)
	}

	sessionID := uuid.NewString()
	glog.Infof("Simulating session %s: %d clients, threshold %d, %d dropping out",
		sessionID, cfg.NumClients, cfg.Threshold, len(dropped))

	clients := make(map[int]*client.PairwiseClient, cfg.NumClients)
	for i := 1; i <= cfg.NumClients; i++ {
		c, err := client.NewPairwiseClient(client.SessionConfig{
			SessionID:     sessionID,
			RoundID:       1,
			Threshold:     cfg.Threshold,
			TotalClients:  cfg.NumClients,
			MyIndex:       i,
			ClippingRange: cfg.ClippingRange,
			TargetRange:   cfg.TargetRange,
			ModRange:      cfg.ModRange,
		})
		if err != nil {
			return nil, fmt.Errorf("creating client %d: %v", i, err)
		}
		clients[i] = c
	}

	// Round 0: every client publishes its key bundle.
	allKeys := make(map[int]client.PeerKeyBundle, cfg.NumClients)
	for i, c := range clients {
		allKeys[i] = c.GetPublicKeys()
	}
	for _, c := range clients {
		if err := c.ReceivePeerPublicKeys(allKeys); err != nil {
			return nil, err
		}
	}

	// Round 1: encrypted share distribution.
	inboxes := make(map[int]map[int][]byte, cfg.NumClients)
	for i := range clients {
		inboxes[i] = make(map[int][]byte)
	}
	for i, c := range clients {
		blobs, err := c.GenerateEncryptedShares()
		if err != nil {
			return nil, fmt.Errorf("client %d generating shares: %v", i, err)
		}
		for peer, blob := range blobs {
			inboxes[peer][i] = blob
		}
	}
	for i, c := range clients {
		if err := c.ReceiveEncryptedShares(inboxes[i]); err != nil {
			return nil, fmt.Errorf("client %d receiving shares: %v", i, err)
		}
	}

	agg, err := aggregator.New(aggregator.Config{
		Threshold:     cfg.Threshold,
		TotalClients:  cfg.NumClients,
		ClippingRange: cfg.ClippingRange,
		TargetRange:   cfg.TargetRange,
		ModRange:      cfg.ModRange,
	})
	if err != nil {
		return nil, err
	}
	agg.RegisterPublicKeys(allKeys)

	// Round 2: active clients submit masked updates. Client i contributes a
	// constant vector of i/10 so the expected aggregate is easy to eyeball.
	var active, droppedList []int
	for i := 1; i <= cfg.NumClients; i++ {
		if dropped[i] {
			droppedList = append(droppedList, i)
			continue
		}
		active = append(active, i)
		values := make([]float64, cfg.VectorLen)
		for j := range values {
			values[j] = float64(i) / 10
		}
		masked, err := clients[i].MaskModelUpdate(values)
		if err != nil {
			return nil, fmt.Errorf("client %d masking: %v", i, err)
		}
		if err := agg.AddMaskedUpdate(i, masked); err != nil {
			return nil, err
		}
	}

	// Round 3: active clients help the aggregator unmask.
	for _, i := range active {
		peerIndices, shares, err := clients[i].Unmask(active, droppedList)
		if err != nil {
			return nil, fmt.Errorf("client %d unmasking: %v", i, err)
		}
		if err := agg.AddUnmaskResponse(peerIndices, shares, droppedList); err != nil {
			return nil, err
		}
	}
	if unrecovered := agg.Unrecovered(); len(unrecovered) > 0 {
		return nil, fmt.Errorf("participants %v remain unrecovered", unrecovered)
	}
	return agg.Sum()
}

// versionCmd prints the current version of the tool.
type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "prints the current version of secagg" }
func (*versionCmd) Usage() string            { return "Usage: secagg version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}
func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Printf("secagg v%s\n", secaggVersion)
	return subcommands.ExitSuccess
}

func main() {
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(&simulateCmd{}, "")
	subcommands.Register(&versionCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
