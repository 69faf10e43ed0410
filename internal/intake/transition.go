package intake

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"
	"claimsflow/internal/policy"
)

// StepInput is one user submission for the current step.
type StepInput struct {
	Step         models.FNOLStep     `json:"step"`
	Text         string              `json:"text,omitempty"`
	AccidentType models.AccidentType `json:"accidentType,omitempty"`
	Photos       []models.ClaimPhoto `json:"photos,omitempty"`

	// Filled by the engine before the transition runs.
	Policy   *models.PolicyRecord `json:"-"`
	Advisory string               `json:"-"`
}

// Outcome is the result of a successful transition. Messages carry no ids;
// the engine stamps them when it applies the outcome.
type Outcome struct {
	Next     models.FNOLStep
	Draft    models.ClaimDraft
	Messages []models.ChatMessage
	Finalize bool
}

const (
	hintPatternRecognition  = "Pattern Recognition"
	hintLocationEnrichment  = "Location Enrichment"
	hintDamageDetection     = "Damage Detection"
	summaryRule             = "━━━━━━━━━━━━━━━━━━"
	msgGreeting             = "Hello! I'm your ClaimsFlow AI assistant, and I'm here to help you report your vehicle insurance claim quickly and easily.\n\nI'll guide you through the process step by step. First, I need to verify your policy.\n\nCould you please provide your policy number? It should be on your insurance card or in your policy documents."
	msgAskLocation          = "Got it. Now, where did the incident take place?\n\nPlease provide the address or describe the location (intersection, parking lot, highway, etc.)"
	msgAskDamage            = "Thank you. Now please describe the damage to your vehicle in detail.\n\nWhat parts of the vehicle were affected? How severe does the damage appear?"
	msgAskPhotos            = "I've recorded the damage description.\n\nNow I'd like you to upload photos of the damage. This will help our team assess your claim more quickly and accurately."
	msgAskAdditionalInfo    = "Is there any additional information you'd like to add? For example:\n- Were there any injuries?\n- Were there other vehicles or parties involved?\n- Is there a police report number?\n\nType \"none\" if there's nothing to add."
	msgPhotosAnalyzed       = "Excellent! I've analyzed the photos you uploaded."
	msgPhotosSkipped        = "No problem, you can upload photos later through the claims portal."
	msgCorrectionRequested  = "No problem! What would you like to change? Please describe the correction needed."
	msgReviewInstructions   = "Does everything look correct? Type \"yes\" to submit or \"no\" to make changes."
	msgReviewIntro          = "Thank you for providing all the information. Here's a summary of your claim:"
	msgAnalysisCompletePref = "AI Image Analysis Complete: "
)

var accidentTypeLabels = map[models.AccidentType]string{
	models.AccidentCollision: "Collision with another vehicle",
	models.AccidentHitAndRun: "Hit and run",
	models.AccidentWeather:   "Weather-related damage",
	models.AccidentTheft:     "Theft or attempted theft",
	models.AccidentVandalism: "Vandalism",
	models.AccidentOther:     "Other",
}

// patternHints are advisory messages shown after the accident type is
// chosen. Types without an entry get no hint.
var patternHints = map[models.AccidentType]string{
	models.AccidentCollision: "Pattern detected: Intersection collision - gathering additional witness info may expedite claim",
	models.AccidentTheft:     "Alert: Theft claims require police report - will request documentation",
	models.AccidentHitAndRun: "Priority flag: Hit-and-run claims fast-tracked for investigation",
	models.AccidentWeather:   "Weather data confirms severe conditions reported in your area on claim date",
}

// accidentDateLayouts are tried in order against the accident details.
var accidentDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006",
}

// AccidentTypeLabel returns the display label of an accident type.
func AccidentTypeLabel(t models.AccidentType) string {
	if l, ok := accidentTypeLabels[t]; ok {
		return l
	}
	return string(t)
}

// Transition validates input for step, merges it into draft and returns
// the next step with the messages to append. It never mutates draft.
func Transition(step models.FNOLStep, in StepInput, draft models.ClaimDraft, now time.Time) (Outcome, error) {
	if step == models.StepComplete {
		return Outcome{}, apperrors.NewInvalidTransitionError(string(step), string(in.Step)).
			WithMetadata("reason", "session is complete")
	}
	if in.Step == "" {
		return Outcome{}, apperrors.NewValidationFailedError("step", "step is required")
	}
	if in.Step != step {
		return Outcome{}, apperrors.NewInvalidTransitionError(string(step), string(in.Step)).
			WithMetadata("reason", "input is for a different step")
	}

	now = now.UTC()
	out := Outcome{Draft: draft.Clone()}
	next, _ := step.Next()
	out.Next = next

	switch step {
	case models.StepGreeting:
		out.Messages = append(out.Messages, assistant(msgGreeting, now))

	case models.StepPolicyVerification:
		number := policy.Normalize(in.Text)
		if number == "" {
			return Outcome{}, apperrors.NewValidationFailedError("policyNumber", "policy number is required")
		}
		out.Messages = append(out.Messages, userCaptured(strings.TrimSpace(in.Text), "policyNumber", now))
		out.Draft.PolicyNumber = number
		if p := in.Policy; p != nil {
			out.Draft.PolicyNumber = p.PolicyNumber
			out.Draft.CustomerName = p.CustomerName
			out.Draft.CustomerEmail = p.CustomerEmail
			out.Draft.CustomerPhone = p.CustomerPhone
			v := p.Vehicle
			out.Draft.Vehicle = &v
		}
		out.Messages = append(out.Messages, assistant(policyFoundMessage(out.Draft), now))

	case models.StepAccidentType:
		typ := in.AccidentType
		if typ == "" {
			typ = models.AccidentType(strings.TrimSpace(in.Text))
		}
		if !typ.Valid() {
			return Outcome{}, apperrors.NewValidationFailedError("accidentType", fmt.Sprintf("unknown accident type %q", typ))
		}
		label := AccidentTypeLabel(typ)
		out.Draft.AccidentType = typ
		out.Messages = append(out.Messages, userCaptured(label, "accidentType", now))
		if hint, ok := patternHints[typ]; ok {
			out.Messages = append(out.Messages, system(hint, hintPatternRecognition, now))
		}
		out.Messages = append(out.Messages, assistant(fmt.Sprintf(
			"I understand you're reporting a %s.\n\nWhen did this incident occur? Please provide the date and approximate time.",
			strings.ToLower(label)), now))

	case models.StepAccidentDetails:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return Outcome{}, apperrors.NewValidationFailedError("accidentDetails", "accident details are required")
		}
		date := parseAccidentDate(text, now)
		out.Draft.AccidentDetails = text
		out.Draft.AccidentDate = &date
		out.Messages = append(out.Messages, userCaptured(text, "accidentDate", now), assistant(msgAskLocation, now))

	case models.StepLocation:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return Outcome{}, apperrors.NewValidationFailedError("accidentLocation", "location is required")
		}
		out.Draft.AccidentLocation = text
		out.Messages = append(out.Messages, userCaptured(text, "accidentLocation", now))
		if in.Advisory != "" {
			out.Messages = append(out.Messages, system(in.Advisory, hintLocationEnrichment, now))
		}
		out.Messages = append(out.Messages, assistant(msgAskDamage, now))

	case models.StepDamageDescription:
		if strings.TrimSpace(in.Text) == "" {
			return Outcome{}, apperrors.NewValidationFailedError("description", "damage description is required")
		}
		out.Draft.Description = in.Text
		out.Messages = append(out.Messages, userCaptured(in.Text, "description", now), assistant(msgAskPhotos, now))

	case models.StepPhotoUpload:
		photos, err := normalizePhotos(in.Photos, now)
		if err != nil {
			return Outcome{}, err
		}
		out.Draft.Photos = append(out.Draft.Photos, photos...)

		echo := userCaptured(fmt.Sprintf("Uploaded %d photo(s)", len(photos)), "photos", now)
		if len(photos) > 0 {
			echo.Metadata.Photos = photos
		}
		out.Messages = append(out.Messages, echo)
		if summary := analysisSummary(photos); summary != "" {
			out.Messages = append(out.Messages, system(msgAnalysisCompletePref+summary, hintDamageDetection, now))
		}
		lead := msgPhotosSkipped
		if len(photos) > 0 {
			lead = msgPhotosAnalyzed
		}
		out.Messages = append(out.Messages, assistant(lead+"\n\n"+msgAskAdditionalInfo, now))

	case models.StepAdditionalInfo:
		text := strings.TrimSpace(in.Text)
		if !strings.EqualFold(text, "none") {
			out.Draft.AdditionalInfo = text
		}
		out.Messages = append(out.Messages, userCaptured(text, "additionalInfo", now), assistant(ReviewSummary(out.Draft), now))

	case models.StepReview:
		text := strings.TrimSpace(in.Text)
		out.Messages = append(out.Messages, user(text, now))
		if IsAffirmative(text) {
			out.Finalize = true
			out.Next = models.StepComplete
		} else {
			out.Next = models.StepReview
			out.Messages = append(out.Messages, assistant(msgCorrectionRequested, now))
		}

	default:
		return Outcome{}, apperrors.NewInvalidTransitionError(string(step), "").
			WithMetadata("reason", "unknown step")
	}

	return out, nil
}

// IsAffirmative reports whether a review answer confirms submission.
func IsAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	switch t {
	case "yes", "y", "confirm", "submit":
		return true
	}
	for _, w := range strings.FieldsFunc(t, func(r rune) bool { return !unicode.IsLetter(r) }) {
		if w == "yes" {
			return true
		}
	}
	return false
}

// ReviewSummary renders the claim summary shown before submission.
func ReviewSummary(d models.ClaimDraft) string {
	var b strings.Builder
	b.WriteString(msgReviewIntro + "\n\n")
	b.WriteString("**Claim Summary**\n" + summaryRule + "\n")
	fmt.Fprintf(&b, "**Policy:** %s\n", orDash(d.PolicyNumber))
	fmt.Fprintf(&b, "**Vehicle:** %s\n", vehicleLine(d.Vehicle))
	fmt.Fprintf(&b, "**Incident Type:** %s\n", orDash(labelOrEmpty(d.AccidentType)))
	fmt.Fprintf(&b, "**Location:** %s\n", orDash(d.AccidentLocation))
	fmt.Fprintf(&b, "**Description:** %s\n", orDash(d.Description))
	fmt.Fprintf(&b, "**Photos:** %d uploaded\n\n", len(d.Photos))
	b.WriteString(msgReviewInstructions)
	return b.String()
}

func policyFoundMessage(d models.ClaimDraft) string {
	if d.CustomerName == "" {
		return "Thank you! I've recorded your policy number " + d.PolicyNumber + ".\n\nNow, please tell me what type of incident occurred:"
	}
	return fmt.Sprintf("Thank you! I found your policy.\n\n**Policy Holder:** %s\n**Vehicle:** %s\n**Policy Status:** Active\n\nNow, please tell me what type of incident occurred:",
		d.CustomerName, vehicleLine(d.Vehicle))
}

func vehicleLine(v *models.Vehicle) string {
	if v == nil {
		return "-"
	}
	parts := make([]string, 0, 3)
	if v.Year > 0 {
		parts = append(parts, fmt.Sprint(v.Year))
	}
	for _, s := range []string{v.Make, v.Model} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

func labelOrEmpty(t models.AccidentType) string {
	if t == "" {
		return ""
	}
	return AccidentTypeLabel(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parseAccidentDate finds the first date in text matching a known layout.
// Dates in the future are ignored.
func parseAccidentDate(text string, now time.Time) time.Time {
	fields := strings.Fields(text)
	candidates := make([]string, 0, len(fields)*2+1)
	candidates = append(candidates, text)
	for i, f := range fields {
		if i+1 < len(fields) {
			candidates = append(candidates, f+" "+fields[i+1])
		}
		candidates = append(candidates, strings.TrimRight(f, ".,;"))
	}

	for _, c := range candidates {
		for _, layout := range accidentDateLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				t = t.UTC()
				if t.After(now) {
					return now
				}
				return t
			}
		}
	}
	return now
}

func normalizePhotos(in []models.ClaimPhoto, now time.Time) ([]models.ClaimPhoto, error) {
	out := make([]models.ClaimPhoto, 0, len(in))
	for i, p := range in {
		if !p.Category.Valid() {
			return nil, apperrors.NewValidationFailedError("photos", fmt.Sprintf("photo %d has unknown category %q", i, p.Category))
		}
		if p.ID == "" {
			return nil, apperrors.NewValidationFailedError("photos", fmt.Sprintf("photo %d has no id", i))
		}
		p = p.Clone()
		if p.Timestamp.IsZero() {
			p.Timestamp = now
		}
		out = append(out, p)
	}
	return out, nil
}

func analysisSummary(photos []models.ClaimPhoto) string {
	var parts []string
	for _, p := range photos {
		a := p.AIAnalysis
		if a == nil {
			continue
		}
		if !a.DamageDetected {
			parts = append(parts, fmt.Sprintf("No damage detected in %s photo", p.Category))
			continue
		}
		s := fmt.Sprintf("Damage detected in %s photo", p.Category)
		if len(a.DamageAreas) > 0 {
			s += ": " + strings.Join(a.DamageAreas, ", ")
		}
		if a.Severity != "" {
			s += fmt.Sprintf(" (%s severity)", a.Severity)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ". ")
}

func user(content string, now time.Time) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleUser, Content: content, Timestamp: now}
}

func userCaptured(content, field string, now time.Time) models.ChatMessage {
	m := user(content, now)
	m.Metadata = &models.MessageMetadata{FieldCaptured: field}
	return m
}

func assistant(content string, now time.Time) models.ChatMessage {
	return models.ChatMessage{Role: models.RoleAssistant, Content: content, Timestamp: now}
}

func system(content, hint string, now time.Time) models.ChatMessage {
	return models.ChatMessage{
		Role:      models.RoleSystem,
		Content:   content,
		Timestamp: now,
		Metadata:  &models.MessageMetadata{AIHint: hint},
	}
}
