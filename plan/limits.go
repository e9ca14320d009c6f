// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package plan

import "github.com/gogpu/gputypes"

// InputFromLimits returns a vertex-stage triangle input whose budget and
// subgroup size respect device limits. Zero limits keep the defaults.
func InputFromLimits(l gputypes.Limits) Input {
	in := Input{
		Chip:            ChipGFX103,
		WaveSize:        64,
		SubgroupSize:    DefaultSubgroupSize,
		LDSBudgetDwords: DefaultLDSDwords,
		Stage:           StageVertex,
		VerticesPerPrim: 3,
	}
	if words := l.MaxComputeWorkgroupStorageSize / 4; words > 0 {
		in.LDSBudgetDwords = min(in.LDSBudgetDwords, words)
	}
	if n := l.MaxComputeInvocationsPerWorkgroup; n > 0 {
		in.SubgroupSize = min(in.SubgroupSize, n)
	}
	return in
}
