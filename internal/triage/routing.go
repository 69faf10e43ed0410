package triage

import "claimsflow/internal/models"

type routingRule struct {
	matches func(s models.ClaimScores) bool
	tier    models.AdjusterTier
	stp     bool
	days    int
	reason  string
}

// routingRules is evaluated top to bottom; the first match wins.
var routingRules = []routingRule{
	{
		matches: func(s models.ClaimScores) bool { return s.FraudRisk > 60 },
		tier:    models.TierSIU,
		days:    30,
		reason:  "High fraud risk indicators detected - requires Special Investigation Unit review",
	},
	{
		matches: func(s models.ClaimScores) bool { return s.Complexity >= 7 || s.Severity >= 7 },
		tier:    models.TierSpecialist,
		days:    21,
		reason:  "High complexity or severity requires specialist adjuster",
	},
	{
		matches: func(s models.ClaimScores) bool { return s.Complexity >= 4 },
		tier:    models.TierSenior,
		days:    14,
		reason:  "Moderate complexity suitable for senior adjuster",
	},
	{
		matches: func(s models.ClaimScores) bool {
			return s.Complexity < 4 && s.Severity < 4 && s.FraudRisk < 25
		},
		tier:   models.TierJunior,
		stp:    true,
		days:   5,
		reason: "Low complexity claim eligible for straight-through processing",
	},
}

var defaultRoute = routingRule{
	tier:   models.TierJunior,
	days:   10,
	reason: "Standard claim suitable for junior adjuster",
}

// Route maps scores to an adjuster tier. It is a pure function of scores.
func Route(s models.ClaimScores) models.RoutingRecommendation {
	rule := defaultRoute
	for _, r := range routingRules {
		if r.matches(s) {
			rule = r
			break
		}
	}
	return models.RoutingRecommendation{
		AdjusterTier:            rule.tier,
		Reason:                  rule.reason,
		StraightThroughEligible: rule.stp,
		EstimatedResolutionDays: rule.days,
	}
}
