// internal/models/claim.go
package models

import "time"

type AccidentType string

const (
	AccidentCollision AccidentType = "collision"
	AccidentTheft     AccidentType = "theft"
	AccidentWeather   AccidentType = "weather"
	AccidentVandalism AccidentType = "vandalism"
	AccidentHitAndRun AccidentType = "hit_and_run"
	AccidentOther     AccidentType = "other"
)

// AccidentTypes lists every accepted accident type in display order.
var AccidentTypes = []AccidentType{
	AccidentCollision,
	AccidentTheft,
	AccidentWeather,
	AccidentVandalism,
	AccidentHitAndRun,
	AccidentOther,
}

func (a AccidentType) Valid() bool {
	for _, t := range AccidentTypes {
		if t == a {
			return true
		}
	}
	return false
}

// ClaimStatus is the claim lifecycle stage. Stages are totally ordered.
type ClaimStatus string

const (
	StatusFNOLInProgress ClaimStatus = "fnol_in_progress"
	StatusFNOLComplete   ClaimStatus = "fnol_complete"
	StatusTriage         ClaimStatus = "triage"
	StatusAssigned       ClaimStatus = "assigned"
	StatusInvestigation  ClaimStatus = "investigation"
	StatusAssessment     ClaimStatus = "assessment"
	StatusSettlement     ClaimStatus = "settlement"
	StatusClosed         ClaimStatus = "closed"
)

var statusOrder = []ClaimStatus{
	StatusFNOLInProgress,
	StatusFNOLComplete,
	StatusTriage,
	StatusAssigned,
	StatusInvestigation,
	StatusAssessment,
	StatusSettlement,
	StatusClosed,
}

// Rank returns the position of s in the lifecycle, or -1 if s is unknown.
func (s ClaimStatus) Rank() int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s ClaimStatus) Valid() bool { return s.Rank() >= 0 }

// Next returns the stage that follows s. ok is false for closed and unknown stages.
func (s ClaimStatus) Next() (ClaimStatus, bool) {
	r := s.Rank()
	if r < 0 || r == len(statusOrder)-1 {
		return "", false
	}
	return statusOrder[r+1], true
}

// CanAdvanceTo reports whether moving from s to next is a single forward step.
func (s ClaimStatus) CanAdvanceTo(next ClaimStatus) bool {
	want, ok := s.Next()
	return ok && want == next
}

type AdjusterTier string

const (
	TierJunior     AdjusterTier = "junior"
	TierSenior     AdjusterTier = "senior"
	TierSpecialist AdjusterTier = "specialist"
	TierSIU        AdjusterTier = "siu"
)

func (t AdjusterTier) Valid() bool {
	switch t {
	case TierJunior, TierSenior, TierSpecialist, TierSIU:
		return true
	}
	return false
}

type Vehicle struct {
	Make         string `json:"make"`
	Model        string `json:"model"`
	Year         int    `json:"year"`
	VIN          string `json:"vin"`
	LicensePlate string `json:"licensePlate"`
}

// ClaimScores are bounded triage scores. Complexity, severity and urgency
// are 1-10; fraud risk and customer value are 1-100.
type ClaimScores struct {
	Complexity    int `json:"complexity"`
	Severity      int `json:"severity"`
	FraudRisk     int `json:"fraudRisk"`
	CustomerValue int `json:"customerValue"`
	Urgency       int `json:"urgency"`
}

type RoutingRecommendation struct {
	AdjusterTier            AdjusterTier `json:"adjusterTier"`
	Reason                  string       `json:"reason"`
	StraightThroughEligible bool         `json:"straightThroughEligible"`
	EstimatedResolutionDays int          `json:"estimatedResolutionDays"`
}

// Claim is the persistent aggregate produced by FNOL intake.
type Claim struct {
	ID string `json:"id"`

	PolicyNumber  string  `json:"policyNumber"`
	CustomerName  string  `json:"customerName"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerPhone string  `json:"customerPhone"`
	Vehicle       Vehicle `json:"vehicle"`

	AccidentType     AccidentType `json:"accidentType"`
	AccidentDate     time.Time    `json:"accidentDate"`
	AccidentLocation string       `json:"accidentLocation"`
	AccidentDetails  string       `json:"accidentDetails,omitempty"`
	Description      string       `json:"description"`
	AdditionalInfo   string       `json:"additionalInfo,omitempty"`
	Photos           []ClaimPhoto `json:"photos"`

	Status              ClaimStatus            `json:"status"`
	Scores              *ClaimScores           `json:"scores,omitempty"`
	Routing             *RoutingRecommendation `json:"routing,omitempty"`
	Notifications       []ClaimNotification    `json:"notifications"`
	AssignedAdjuster    string                 `json:"assignedAdjuster,omitempty"`
	EstimatedCompletion *time.Time             `json:"estimatedCompletion,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share slices or pointers
// with a stored claim.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	out := *c
	out.Photos = make([]ClaimPhoto, len(c.Photos))
	for i, p := range c.Photos {
		out.Photos[i] = p.Clone()
	}
	out.Notifications = make([]ClaimNotification, len(c.Notifications))
	copy(out.Notifications, c.Notifications)
	if c.Scores != nil {
		s := *c.Scores
		out.Scores = &s
	}
	if c.Routing != nil {
		r := *c.Routing
		out.Routing = &r
	}
	if c.EstimatedCompletion != nil {
		t := *c.EstimatedCompletion
		out.EstimatedCompletion = &t
	}
	return &out
}

// UnreadNotifications counts notifications not yet read.
func (c *Claim) UnreadNotifications() int {
	n := 0
	for _, notif := range c.Notifications {
		if !notif.Read {
			n++
		}
	}
	return n
}

// ClaimPatch carries the externally mutable fields of a claim. Nil fields
// are left untouched.
type ClaimPatch struct {
	Status              *ClaimStatus `json:"status,omitempty"`
	AssignedAdjuster    *string      `json:"assignedAdjuster,omitempty"`
	EstimatedCompletion *time.Time   `json:"estimatedCompletion,omitempty"`
}

func (p ClaimPatch) Empty() bool {
	return p.Status == nil && p.AssignedAdjuster == nil && p.EstimatedCompletion == nil
}
