package models

import "time"

type PhotoCategory string

const (
	PhotoFront    PhotoCategory = "front"
	PhotoRear     PhotoCategory = "rear"
	PhotoLeft     PhotoCategory = "left"
	PhotoRight    PhotoCategory = "right"
	PhotoInterior PhotoCategory = "interior"
	PhotoDamage   PhotoCategory = "damage"
	PhotoDocument PhotoCategory = "document"
)

var PhotoCategories = []PhotoCategory{
	PhotoFront, PhotoRear, PhotoLeft, PhotoRight, PhotoInterior, PhotoDamage, PhotoDocument,
}

func (c PhotoCategory) Valid() bool {
	for _, pc := range PhotoCategories {
		if pc == c {
			return true
		}
	}
	return false
}

// PhotoAnalysis is an advisory annotation from the photo analysis
// collaborator. Scoring never reads it.
type PhotoAnalysis struct {
	DamageDetected bool     `json:"damageDetected"`
	DamageAreas    []string `json:"damageAreas,omitempty"`
	Severity       string   `json:"severity,omitempty"`
	Confidence     float64  `json:"confidence,omitempty"`
}

type ClaimPhoto struct {
	ID         string         `json:"id"`
	URL        string         `json:"url"`
	Category   PhotoCategory  `json:"category"`
	Timestamp  time.Time      `json:"timestamp"`
	AIAnalysis *PhotoAnalysis `json:"aiAnalysis,omitempty"`
}

func (p ClaimPhoto) Clone() ClaimPhoto {
	out := p
	if p.AIAnalysis != nil {
		a := *p.AIAnalysis
		a.DamageAreas = append([]string(nil), p.AIAnalysis.DamageAreas...)
		out.AIAnalysis = &a
	}
	return out
}
