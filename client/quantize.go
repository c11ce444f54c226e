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

// Quantization of floating-point update vectors into the bounded non-negative
// integers required by modular masking arithmetic.

package client

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/tink/go/subtle/random"
)

// Quantize clips each value to [-clippingRange, +clippingRange], linearly
// rescales it to [0, targetRange] (0.0 maps to targetRange/2) and applies
// stochastic rounding: a rescaled value with fractional part f rounds up with
// probability f and down with probability 1-f, so the rounding is unbiased in
// expectation. Exact integers round deterministically.
func Quantize(values []float64, clippingRange float64, targetRange uint64) ([]uint64, error) {
	if clippingRange <= 0 {
		return nil, fmt.Errorf("clippingRange must be positive, got %v", clippingRange)
	}
	if targetRange == 0 {
		return nil, fmt.Errorf("targetRange must be positive")
	}
	out := make([]uint64, len(values))
	scale := float64(targetRange) / (2 * clippingRange)
	for i, v := range values {
		clipped := math.Max(-clippingRange, math.Min(clippingRange, v))
		rescaled := (clipped + clippingRange) * scale
		out[i] = stochasticRound(rescaled, targetRange)
	}
	return out, nil
}

// Dequantize is the algebraic inverse of Quantize without the rounding step.
func Dequantize(values []uint64, clippingRange float64, targetRange uint64) ([]float64, error) {
	if clippingRange <= 0 {
		return nil, fmt.Errorf("clippingRange must be positive, got %v", clippingRange)
	}
	if targetRange == 0 {
		return nil, fmt.Errorf("targetRange must be positive")
	}
	out := make([]float64, len(values))
	scale := (2 * clippingRange) / float64(targetRange)
	for i, v := range values {
		out[i] = float64(v)*scale - clippingRange
	}
	return out, nil
}

// DequantizeSum maps an aggregated quantized value back to the real line.
// Summing numClients quantized vectors accumulates numClients offsets of
// clippingRange each, which must all be removed.
func DequantizeSum(values []uint64, clippingRange float64, targetRange uint64, numClients int) ([]float64, error) {
	if numClients < 1 {
		return nil, fmt.Errorf("numClients must be at least 1, got %d", numClients)
	}
	out, err := Dequantize(values, clippingRange, targetRange)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i] -= clippingRange * float64(numClients-1)
	}
	return out, nil
}

func stochasticRound(v float64, max uint64) uint64 {
	floor := math.Floor(v)
	frac := v - floor
	rounded := uint64(floor)
	if frac > 0 && randomFraction() < frac {
		rounded++
	}
	if rounded > max {
		rounded = max
	}
	return rounded
}

// randomFraction returns a uniformly distributed float64 in [0, 1) backed by
// a cryptographic source.
func randomFraction() float64 {
	b := random.GetRandomBytes(8)
	// 53 bits of mantissa.
	return float64(binary.BigEndian.Uint64(b)>>11) / (1 << 53)
}
