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

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	raw := `numClients: 7
threshold: 4
vectorLen: 12
dropped: [2, 6]
clippingRange: 8.0
targetRange: 4096
modRange: 1048576
`
	if err := os.WriteFile(path, []byte(raw), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cmd := &simulateCmd{configFile: path}
	got, err := cmd.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() err = %v, want nil", err)
	}
	want := simulationConfig{
		NumClients:    7,
		Threshold:     4,
		VectorLen:     12,
		Dropped:       []int{2, 6},
		ClippingRange: 8.0,
		TargetRange:   4096,
		ModRange:      1 << 20,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("loadConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simulation.yaml")
	if err := os.WriteFile(path, []byte("numClients: 7\nthreshold: 4\n"), 0644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	cmd := &simulateCmd{configFile: path, numClients: 9, dropped: "1, 3"}
	got, err := cmd.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() err = %v, want nil", err)
	}
	if got.NumClients != 9 {
		t.Errorf("NumClients = %d, want the flag value 9", got.NumClients)
	}
	if got.Threshold != 4 {
		t.Errorf("Threshold = %d, want the file value 4", got.Threshold)
	}
	if diff := cmp.Diff([]int{1, 3}, got.Dropped); diff != "" {
		t.Errorf("Dropped mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := &simulateCmd{}
	got, err := cmd.loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() err = %v, want nil", err)
	}
	if diff := cmp.Diff(defaultSimulationConfig(), got); diff != "" {
		t.Errorf("loadConfig() without inputs should be the defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfigBadDroppedFlag(t *testing.T) {
	cmd := &simulateCmd{dropped: "2,x"}
	if _, err := cmd.loadConfig(); err == nil {
		t.Errorf("loadConfig() err = nil, want error for a non-numeric index")
	}
}

func TestRunSimulationRejectsImpossibleRound(t *testing.T) {
	cfg := defaultSimulationConfig()
	cfg.Dropped = []int{1, 2, 3}
	if _, err := runSimulation(cfg); err == nil {
		t.Errorf("runSimulation() err = nil, want error when active participants fall below the threshold")
	}
	cfg = defaultSimulationConfig()
	cfg.Dropped = []int{99}
	if _, err := runSimulation(cfg); err == nil {
		t.Errorf("runSimulation() err = nil, want error for an out-of-range dropped index")
	}
}

func TestRunSimulationRecoversExpectedSum(t *testing.T) {
	cfg := defaultSimulationConfig()
	cfg.NumClients = 4
	cfg.Threshold = 2
	cfg.VectorLen = 3
	cfg.Dropped = []int{4}
	sum, err := runSimulation(cfg)
	if err != nil {
		t.Fatalf("runSimulation() err = %v, want nil", err)
	}
	if len(sum) != cfg.VectorLen {
		t.Fatalf("sum length = %d, want %d", len(sum), cfg.VectorLen)
	}
	// Clients 1..3 each contribute constant vectors of i/10.
	want := 0.1 + 0.2 + 0.3
	for i, v := range sum {
		if diff := v - want; diff > 0.01 || diff < -0.01 {
			t.Errorf("sum[%d] = %f, want about %f", i, v, want)
		}
	}
}
