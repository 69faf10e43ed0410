package triage

import (
	"fmt"

	"claimsflow/internal/models"
)

const maxInsights = 4

// Insights returns short advisory lines for the claimant and adjuster
// views. They never influence scoring or routing.
func Insights(c *models.Claim, s models.ClaimScores) []string {
	var out []string

	switch n := len(c.Photos); {
	case n >= 3:
		out = append(out, fmt.Sprintf("%d photos uploaded, sufficient documentation for faster assessment", n))
	case n > 0:
		out = append(out, fmt.Sprintf("%d photo(s) received, additional photos may speed up processing", n))
	default:
		out = append(out, "No photos uploaded, your adjuster may request photos to proceed")
	}

	if len([]rune(c.Description)) > 100 {
		out = append(out, "Detailed incident description provided, helps expedite review")
	} else {
		out = append(out, "Brief description noted, your adjuster may follow up for more details")
	}

	if s.Complexity <= 4 && s.Severity <= 4 {
		out = append(out, "Claim complexity is low, eligible for expedited processing")
	} else if s.Complexity >= 7 || s.Severity >= 7 {
		out = append(out, "Claim requires specialist review, assigned to experienced adjuster")
	}

	switch c.AccidentType {
	case models.AccidentCollision:
		out = append(out, "Collision claims typically resolve within 2-3 weeks with complete documentation")
	case models.AccidentTheft:
		out = append(out, "Theft claim registered, police report will be requested if not already provided")
	case models.AccidentHitAndRun:
		out = append(out, "Hit-and-run claims are prioritized, your adjuster will contact you within 24 hours")
	case models.AccidentWeather:
		out = append(out, "Weather-related damage confirmed, no additional verification typically required")
	case models.AccidentVandalism:
		out = append(out, "Vandalism claim noted, police report recommended for faster processing")
	default:
		out = append(out, "Your claim is being processed according to standard procedures")
	}

	if s.Urgency >= 7 {
		out = append(out, "High priority flag applied, expect faster initial contact")
	}

	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}
