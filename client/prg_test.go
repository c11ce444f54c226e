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
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Cross-implementation vector: SHA-256(zeros32 || BE32(i)), first 4 digest
// bytes as a big endian uint32. The aggregator and every client must produce
// exactly this stream, so the values are pinned byte for byte.
var zeroSeedStream = []uint64{
	1840668629, 559458448, 3781113668, 3034825978, 3582250647,
	1430939594, 2823302051, 3828091397, 2660242460, 1398774983,
}

func TestGenerateMaskStreamKnownVector(t *testing.T) {
	seed := make([]byte, 32)
	got, err := GenerateMaskStream(seed, 1<<32, 10)
	if err != nil {
		t.Fatalf("GenerateMaskStream() err = %v, want nil", err)
	}
	if diff := cmp.Diff(zeroSeedStream, got); diff != "" {
		t.Errorf("GenerateMaskStream() returned unexpected stream (-want +got):\n%s", diff)
	}
}

func TestGenerateMaskStreamDeterministic(t *testing.T) {
	seed := []byte("a fixed seed for determinism")
	first, err := GenerateMaskStream(seed, 1000000, 500)
	if err != nil {
		t.Fatalf("GenerateMaskStream() err = %v, want nil", err)
	}
	second, err := GenerateMaskStream(seed, 1000000, 500)
	if err != nil {
		t.Fatalf("GenerateMaskStream() err = %v, want nil", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("same seed produced different streams (-first +second):\n%s", diff)
	}
}

func TestGenerateMaskStreamDifferentSeedsDiffer(t *testing.T) {
	seedA := make([]byte, 32)
	seedB := make([]byte, 32)
	seedB[0] = 1
	a, err := GenerateMaskStream(seedA, 1<<32, 64)
	if err != nil {
		t.Fatalf("GenerateMaskStream() err = %v, want nil", err)
	}
	b, err := GenerateMaskStream(seedB, 1<<32, 64)
	if err != nil {
		t.Fatalf("GenerateMaskStream() err = %v, want nil", err)
	}
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	if same == len(a) {
		t.Errorf("different seeds produced identical 64-element streams")
	}
}

func TestGenerateMaskStreamRange(t *testing.T) {
	for _, numRange := range []uint64{1, 2, 255, 1 << 20} {
		got, err := GenerateMaskStream([]byte("range"), numRange, 256)
		if err != nil {
			t.Fatalf("GenerateMaskStream(numRange=%d) err = %v, want nil", numRange, err)
		}
		for i, v := range got {
			if v >= numRange {
				t.Fatalf("output[%d] = %d, want < %d", i, v, numRange)
			}
		}
	}
}

func TestGenerateMaskStreamLargeCount(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large stream generation in short mode")
	}
	got, err := GenerateMaskStream([]byte("large"), 1<<24, 2_000_000)
	if err != nil {
		t.Fatalf("GenerateMaskStream() err = %v, want nil", err)
	}
	if len(got) != 2_000_000 {
		t.Errorf("len = %d, want 2000000", len(got))
	}
}

func TestGenerateMaskStreamInvalidInput(t *testing.T) {
	if _, err := GenerateMaskStream([]byte("x"), 0, 1); err == nil {
		t.Errorf("GenerateMaskStream(numRange=0) err = nil, want error")
	}
	if _, err := GenerateMaskStream([]byte("x"), 10, -1); err == nil {
		t.Errorf("GenerateMaskStream(count=-1) err = nil, want error")
	}
}

func TestGenerateMaskBytes(t *testing.T) {
	got, err := GenerateMaskBytes([]byte("bytes"), 32)
	if err != nil {
		t.Fatalf("GenerateMaskBytes() err = %v, want nil", err)
	}
	if len(got) != 32 {
		t.Errorf("len = %d, want 32", len(got))
	}
	empty, err := GenerateMaskBytes([]byte("bytes"), 0)
	if err != nil {
		t.Fatalf("GenerateMaskBytes(count=0) err = %v, want nil", err)
	}
	if len(empty) != 0 {
		t.Errorf("len = %d, want 0", len(empty))
	}
}
