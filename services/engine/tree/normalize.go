// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tree

import (
	"fmt"
	"math"
)

// NormalizeCandidates rescales a candidate set so probabilities sum to 1.0.
//
// Description:
//
//	Pure function: the input slice is not modified. Each probability is
//	divided by the sum of all raw probabilities. If the sum is exactly zero
//	(every candidate reported zero), the result is a uniform 1/N
//	distribution. If the first pass still deviates beyond
//	SiblingSumTolerance (floating point drift on many candidates), a single
//	corrective re-pass is run on the result.
//
// Outputs:
//
//	[]OutcomeCandidate - the normalized copies, same order as the input.
//	error - ErrInvariant for an empty set, non-finite input, or a result
//	        that still fails the tolerance after the re-pass.
func NormalizeCandidates(candidates []OutcomeCandidate) ([]OutcomeCandidate, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to normalize", ErrInvariant)
	}

	for i, c := range candidates {
		if math.IsNaN(c.Probability) || math.IsInf(c.Probability, 0) {
			return nil, fmt.Errorf("%w: candidate %d has non-finite probability", ErrInvariant, i)
		}
	}

	out := rescale(candidates)
	if sumOutside(out, SiblingSumTolerance) {
		out = rescale(out)
	}
	if sumOutside(out, SiblingSumTolerance) {
		return nil, fmt.Errorf("%w: normalization failed to converge (sum %.6f)",
			ErrInvariant, probabilitySum(out))
	}
	return out, nil
}

func rescale(candidates []OutcomeCandidate) []OutcomeCandidate {
	out := make([]OutcomeCandidate, len(candidates))
	copy(out, candidates)

	sum := probabilitySum(out)
	if sum == 0 {
		uniform := 1.0 / float64(len(out))
		for i := range out {
			out[i].Probability = uniform
		}
		return out
	}
	for i := range out {
		out[i].Probability /= sum
	}
	return out
}

func probabilitySum(candidates []OutcomeCandidate) float64 {
	sum := 0.0
	for _, c := range candidates {
		sum += c.Probability
	}
	return sum
}

func sumOutside(candidates []OutcomeCandidate, tolerance float64) bool {
	return math.Abs(probabilitySum(candidates)-1.0) > tolerance
}
