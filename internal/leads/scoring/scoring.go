// Package scoring computes a lead's numeric score and temperature bucket.
// Score is a pure function: identical snapshots always yield identical
// results, so callers must pass the latest lead state.
package scoring

import (
	"time"

	"leadrouter_backend/internal/leads/domain"
)

// Thresholds are the configured temperature cut-offs. Anything below Warm
// is cold.
type Thresholds struct {
	Warm    int
	Hot     int
	Burning int
}

// Snapshot is the accumulated signal history the score derives from.
// Now is part of the input so recency scoring stays deterministic.
type Snapshot struct {
	Now                   time.Time
	LastInboundAt         *time.Time
	HasBudget             bool
	QualifyingAnswers     int
	ConsultationRequested bool
	NudgeCount            int
}

const (
	maxScore = 100

	recencyHourPoints = 25
	recencyDayPoints  = 15
	recencyWeekPoints = 5

	budgetPoints       = 20
	answerPoints       = 10
	maxAnswerPoints    = 30
	consultationPoints = 30
	nudgePenalty       = 10
	engagedBasePoints  = 10
)

// Score computes the lead score and its temperature bucket.
func Score(s Snapshot, t Thresholds) (int, domain.Temperature) {
	score := 0

	if s.LastInboundAt != nil {
		score += engagedBasePoints

		switch idle := s.Now.Sub(*s.LastInboundAt); {
		case idle <= time.Hour:
			score += recencyHourPoints
		case idle <= 24*time.Hour:
			score += recencyDayPoints
		case idle <= 7*24*time.Hour:
			score += recencyWeekPoints
		}
	}

	if s.HasBudget {
		score += budgetPoints
	}

	answers := s.QualifyingAnswers * answerPoints
	if answers > maxAnswerPoints {
		answers = maxAnswerPoints
	}
	score += answers

	if s.ConsultationRequested {
		score += consultationPoints
	}

	score -= s.NudgeCount * nudgePenalty

	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	return score, temperature(score, t)
}

func temperature(score int, t Thresholds) domain.Temperature {
	switch {
	case score >= t.Burning:
		return domain.TemperatureBurning
	case score >= t.Hot:
		return domain.TemperatureHot
	case score >= t.Warm:
		return domain.TemperatureWarm
	default:
		return domain.TemperatureCold
	}
}
