package okr

import (
	"math"
	"time"
)

const day = 24 * time.Hour

// Confidence weights used when adjusting pace ratio. Unknown values are
// treated as medium.
var confidenceWeights = map[Confidence]float64{
	ConfidenceHigh:   1.0,
	ConfidenceMedium: 0.8,
	ConfidenceLow:    0.6,
}

const defaultConfidenceFactor = 0.8

const recommendationOverdue = "Past due with incomplete progress. Close the objective out or re-plan it with a new due date."
const recommendationOffTrack = "Progress is well behind the elapsed time. Reduce scope or escalate blockers now."
const recommendationAtRisk = "Progress is trailing the pace needed to finish on time. Review blockers with the owner."

// ClassifyHealth combines progress, elapsed-time ratio, and key result
// confidence into a status label and a health-metrics record. Rules are
// evaluated in order; the first match wins:
//
//  1. progress >= 100 is completed (metrics kept for display, risk forced low)
//  2. no due date disables time-based scoring entirely
//  3. past due with incomplete progress is off-track/critical
//  4. otherwise pace ratio, confidence factor, and an urgency multiplier
//     feed a fixed decision tree
//
// Risk level is derived from the raw pace ratio alone and is deliberately
// independent of the status label.
func ClassifyHealth(progress int, dueDate *time.Time, createdAt time.Time, keyResults []KeyResult, now time.Time) (Status, HealthMetrics) {
	if dueDate == nil {
		m := HealthMetrics{RiskLevel: RiskLow}
		switch {
		case progress >= 100:
			return StatusCompleted, m
		case progress > 0:
			return StatusOnTrack, m
		default:
			return StatusDraft, m
		}
	}

	daysRemaining := int(math.Ceil(dueDate.Sub(now).Hours() / 24))
	daysElapsed := int(now.Sub(createdAt).Hours() / 24)
	if daysElapsed < 0 {
		daysElapsed = 0
	}

	m := HealthMetrics{
		DaysRemaining: daysRemaining,
		DaysElapsed:   daysElapsed,
	}

	if daysRemaining < 0 && progress < 100 {
		m.ExpectedProgress = 100
		m.ProgressGap = 100 - float64(progress)
		m.PercentTimeElapsed = 100
		m.PaceRatio = float64(progress) / 100
		m.RiskLevel = RiskCritical
		m.Recommendation = recommendationOverdue
		return StatusOffTrack, m
	}

	var expected float64
	if span := dueDate.Sub(createdAt); span > 0 {
		expected = clamp(100*float64(now.Sub(createdAt))/float64(span), 0, 100)
	}
	m.ExpectedProgress = expected
	m.PercentTimeElapsed = expected
	m.ProgressGap = expected - float64(progress)

	// Neutral pace defaults when no time has elapsed yet are heuristic
	// constants kept for parity with historical scoring; treat as tunable.
	pace := 0.5
	switch {
	case expected > 0:
		pace = float64(progress) / expected
	case progress > 0:
		pace = 1.5
	}
	m.PaceRatio = pace
	m.RiskLevel = riskForPace(pace)

	if progress >= 100 {
		m.RiskLevel = RiskLow
		return StatusCompleted, m
	}

	adjusted := pace * confidenceFactor(keyResults)
	urgency := urgencyMultiplier(daysRemaining)

	switch {
	case adjusted < 0.4,
		daysRemaining <= 7 && progress < 70,
		daysRemaining <= 14 && progress < 50,
		m.ProgressGap > 40*urgency:
		m.Recommendation = recommendationOffTrack
		return StatusOffTrack, m
	case adjusted < 0.7,
		daysRemaining <= 7 && progress < 85,
		daysRemaining <= 14 && progress < 70,
		daysRemaining <= 30 && progress < 50,
		m.ProgressGap > 20*urgency:
		m.Recommendation = recommendationAtRisk
		return StatusAtRisk, m
	default:
		return StatusOnTrack, m
	}
}

// confidenceFactor is the mean confidence weight over the objective's key
// results, defaulting to medium when there are none.
func confidenceFactor(keyResults []KeyResult) float64 {
	if len(keyResults) == 0 {
		return defaultConfidenceFactor
	}
	var total float64
	for _, kr := range keyResults {
		w, ok := confidenceWeights[kr.Confidence]
		if !ok {
			w = defaultConfidenceFactor
		}
		total += w
	}
	return total / float64(len(keyResults))
}

// urgencyMultiplier scales gap thresholds up as the deadline nears.
func urgencyMultiplier(daysRemaining int) float64 {
	switch {
	case daysRemaining <= 7:
		return 1.5
	case daysRemaining <= 14:
		return 1.3
	case daysRemaining <= 30:
		return 1.1
	default:
		return 1.0
	}
}

func riskForPace(pace float64) RiskLevel {
	switch {
	case pace >= 0.9:
		return RiskLow
	case pace >= 0.7:
		return RiskMedium
	case pace >= 0.5:
		return RiskHigh
	default:
		return RiskCritical
	}
}
