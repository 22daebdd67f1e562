package okr

import "math"

// ComputeProgress derives a 0-100 completion percentage from an objective's
// key results: the unweighted mean of per-key-result completion ratios,
// rounded to the nearest integer. An objective with no key results has
// progress 0. Degenerate inputs never error; they degrade to 0 or 100.
func ComputeProgress(keyResults []KeyResult) int {
	if len(keyResults) == 0 {
		return 0
	}
	var total float64
	for _, kr := range keyResults {
		total += kr.CompletionRatio()
	}
	return int(math.Round(total / float64(len(keyResults))))
}

// CompletionRatio returns this key result's completion as a percentage
// clamped to [0, 100]. When target equals start there is no range to
// interpolate over: the result is 100 once the current value reaches the
// target and 0 before that.
func (kr KeyResult) CompletionRatio() float64 {
	if kr.TargetValue == kr.StartValue {
		if kr.CurrentValue >= kr.TargetValue {
			return 100
		}
		return 0
	}
	ratio := (kr.CurrentValue - kr.StartValue) / (kr.TargetValue - kr.StartValue) * 100
	return clamp(ratio, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
