package models

import "time"

// FNOLStep is a state of the intake conversation.
type FNOLStep string

const (
	StepGreeting           FNOLStep = "greeting"
	StepPolicyVerification FNOLStep = "policy_verification"
	StepAccidentType       FNOLStep = "accident_type"
	StepAccidentDetails    FNOLStep = "accident_details"
	StepLocation           FNOLStep = "location"
	StepDamageDescription  FNOLStep = "damage_description"
	StepPhotoUpload        FNOLStep = "photo_upload"
	StepAdditionalInfo     FNOLStep = "additional_info"
	StepReview             FNOLStep = "review"
	StepComplete           FNOLStep = "complete"
)

var stepOrder = []FNOLStep{
	StepGreeting,
	StepPolicyVerification,
	StepAccidentType,
	StepAccidentDetails,
	StepLocation,
	StepDamageDescription,
	StepPhotoUpload,
	StepAdditionalInfo,
	StepReview,
	StepComplete,
}

func (s FNOLStep) Valid() bool {
	for _, st := range stepOrder {
		if st == s {
			return true
		}
	}
	return false
}

// Next returns the step after s. Complete has no successor.
func (s FNOLStep) Next() (FNOLStep, bool) {
	for i, st := range stepOrder {
		if st == s && i < len(stepOrder)-1 {
			return stepOrder[i+1], true
		}
	}
	return "", false
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type MessageMetadata struct {
	FieldCaptured string       `json:"fieldCaptured,omitempty"`
	AIHint        string       `json:"aiHint,omitempty"`
	Photos        []ClaimPhoto `json:"photos,omitempty"`
}

type ChatMessage struct {
	ID        string           `json:"id"`
	Role      MessageRole      `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

// ClaimDraft accumulates facts during intake. Unset fields are zero.
type ClaimDraft struct {
	PolicyNumber     string       `json:"policyNumber,omitempty"`
	CustomerName     string       `json:"customerName,omitempty"`
	CustomerEmail    string       `json:"customerEmail,omitempty"`
	CustomerPhone    string       `json:"customerPhone,omitempty"`
	Vehicle          *Vehicle     `json:"vehicle,omitempty"`
	AccidentType     AccidentType `json:"accidentType,omitempty"`
	AccidentDate     *time.Time   `json:"accidentDate,omitempty"`
	AccidentDetails  string       `json:"accidentDetails,omitempty"`
	AccidentLocation string       `json:"accidentLocation,omitempty"`
	Description      string       `json:"description,omitempty"`
	Photos           []ClaimPhoto `json:"photos,omitempty"`
	AdditionalInfo   string       `json:"additionalInfo,omitempty"`
}

func (d ClaimDraft) Clone() ClaimDraft {
	out := d
	if d.Vehicle != nil {
		v := *d.Vehicle
		out.Vehicle = &v
	}
	if d.AccidentDate != nil {
		t := *d.AccidentDate
		out.AccidentDate = &t
	}
	if d.Photos != nil {
		out.Photos = make([]ClaimPhoto, len(d.Photos))
		for i, p := range d.Photos {
			out.Photos[i] = p.Clone()
		}
	}
	return out
}

// FNOLSession is the ephemeral intake conversation for one claim.
type FNOLSession struct {
	ID           string        `json:"id"`
	Messages     []ChatMessage `json:"messages"`
	Draft        ClaimDraft    `json:"draft"`
	CurrentStep  FNOLStep      `json:"currentStep"`
	IsComplete   bool          `json:"isComplete"`
	ClaimID      string        `json:"claimId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	LastActivity time.Time     `json:"lastActivity"`
}

// IsExpired reports whether the session has been idle longer than ttl.
func (s *FNOLSession) IsExpired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

func (s *FNOLSession) Clone() *FNOLSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]ChatMessage, len(s.Messages))
	copy(out.Messages, s.Messages)
	out.Draft = s.Draft.Clone()
	return &out
}
