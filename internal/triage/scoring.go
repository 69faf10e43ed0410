package triage

import (
	"unicode/utf8"

	"claimsflow/internal/models"
)

const (
	baseComplexity = 3
	baseSeverity   = 3
	baseFraudRisk  = 15
	baseUrgency    = 4

	noPhotoFraudPenalty      = 20
	noPhotoComplexityPenalty = 1

	shortDescriptionLength     = 50
	shortDescComplexityPenalty = 1
	shortDescFraudPenalty      = 5

	customerValueMin = 50
	customerValueMax = 89
)

type adjustment struct {
	complexity, severity, fraud, urgency int
}

var accidentAdjustments = map[models.AccidentType]adjustment{
	models.AccidentCollision: {complexity: 2, severity: 2},
	models.AccidentTheft:     {complexity: 3, fraud: 25, urgency: 2},
	models.AccidentHitAndRun: {complexity: 4, fraud: 15, urgency: 3},
	models.AccidentWeather:   {complexity: 1, severity: 1},
	models.AccidentVandalism: {complexity: 2, fraud: 10},
	models.AccidentOther:     {},
}

// Facts are the immutable claim attributes scoring reads.
type Facts struct {
	AccidentType      models.AccidentType
	PhotoCount        int
	DescriptionLength int
}

func FactsOf(c *models.Claim) Facts {
	return Facts{
		AccidentType:      c.AccidentType,
		PhotoCount:        len(c.Photos),
		DescriptionLength: utf8.RuneCountInString(c.Description),
	}
}

// Score applies the rule table, adds perturbation from src and clamps
// every score into its range. Draw order is fixed so a seeded source
// reproduces the same scores.
func Score(f Facts, src Source) models.ClaimScores {
	complexity := baseComplexity
	severity := baseSeverity
	fraud := baseFraudRisk
	urgency := baseUrgency

	adj := accidentAdjustments[f.AccidentType]
	complexity += adj.complexity
	severity += adj.severity
	fraud += adj.fraud
	urgency += adj.urgency

	if f.PhotoCount == 0 {
		fraud += noPhotoFraudPenalty
		complexity += noPhotoComplexityPenalty
	}
	if f.DescriptionLength < shortDescriptionLength {
		complexity += shortDescComplexityPenalty
		fraud += shortDescFraudPenalty
	}

	complexity += between(src, 0, 1)
	severity += between(src, 0, 2)
	fraud += between(src, 0, 9)
	urgency += between(src, 0, 1)
	customerValue := between(src, customerValueMin, customerValueMax)

	return models.ClaimScores{
		Complexity:    clamp(complexity, 1, 10),
		Severity:      clamp(severity, 1, 10),
		FraudRisk:     clamp(fraud, 1, 100),
		CustomerValue: clamp(customerValue, 1, 100),
		Urgency:       clamp(urgency, 1, 10),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
