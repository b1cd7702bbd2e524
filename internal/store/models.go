package store

import (
	"encoding/json"
	"time"
)

type TestStatus string

const (
	StatusDraft     TestStatus = "draft"
	StatusRunning   TestStatus = "running"
	StatusCompleted TestStatus = "completed"
	StatusStopped   TestStatus = "stopped"
)

type GoalType string

const (
	GoalClick      GoalType = "click"
	GoalFormSubmit GoalType = "form_submit"
	GoalPageView   GoalType = "page_view"
	GoalCustom     GoalType = "custom"
)

// Test is a single A/B experiment targeting one page element.
type Test struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	Status           TestStatus `json:"status"`
	ElementSelector  string     `json:"elementSelector"`
	GoalType         GoalType   `json:"goalType"`
	GoalSelector     string     `json:"goalSelector,omitempty"`
	MinSampleSize    int        `json:"minSampleSize"`
	ConfidenceLevel  float64    `json:"confidenceLevel"`
	WinningVariantID string     `json:"winningVariantId,omitempty"`
	Variants         []Variant  `json:"variants"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Variant is one alternative under test. Changes is opaque to the
// engine; it is stored and returned verbatim for the caller's renderer.
type Variant struct {
	ID          string          `json:"id"`
	TestID      string          `json:"testId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	IsControl   bool            `json:"isControl"`
	Weight      float64         `json:"weight"`
	Changes     json.RawMessage `json:"changes,omitempty"`

	// Derived from the event log on read, never stored.
	Impressions    int     `json:"impressions"`
	Conversions    int     `json:"conversions"`
	ConversionRate float64 `json:"conversionRate"`
}

// Event is one append-only impression or conversion record.
type Event struct {
	ID        string    `json:"id"`
	TestID    string    `json:"testId"`
	VariantID string    `json:"variantId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TestDefinition is the payload for creating a test.
type TestDefinition struct {
	Name            string              `json:"name" validate:"required"`
	Description     string              `json:"description"`
	ElementSelector string              `json:"elementSelector" validate:"required"`
	GoalType        GoalType            `json:"goalType" validate:"required,oneof=click form_submit page_view custom"`
	GoalSelector    string              `json:"goalSelector"`
	MinSampleSize   int                 `json:"minSampleSize" validate:"gte=1"`
	ConfidenceLevel float64             `json:"confidenceLevel" validate:"gt=0,lt=1"`
	Variants        []VariantDefinition `json:"variants" validate:"min=2,dive"`
}

type VariantDefinition struct {
	ID          string          `json:"id,omitempty"` // set on update upserts, never on create
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	IsControl   bool            `json:"isControl"`
	Weight      float64         `json:"weight" validate:"gt=0"`
	Changes     json.RawMessage `json:"changes"`
}

// TestUpdate carries a partial update; nil fields are left untouched.
// Variants are upserted by id and never deleted implicitly.
type TestUpdate struct {
	Name            *string             `json:"name"`
	Description     *string             `json:"description"`
	Status          *TestStatus         `json:"status"`
	ElementSelector *string             `json:"elementSelector"`
	GoalType        *GoalType           `json:"goalType"`
	GoalSelector    *string             `json:"goalSelector"`
	MinSampleSize   *int                `json:"minSampleSize"`
	ConfidenceLevel *float64            `json:"confidenceLevel"`
	Variants        []VariantDefinition `json:"variants"`
}

const (
	DefaultMinSampleSize   = 100
	DefaultConfidenceLevel = 0.95
	DefaultWeight          = 1.0
)

// Normalize fills zero-valued optional fields with their defaults
// before validation.
func (d *TestDefinition) Normalize() {
	if d.MinSampleSize == 0 {
		d.MinSampleSize = DefaultMinSampleSize
	}
	if d.ConfidenceLevel == 0 {
		d.ConfidenceLevel = DefaultConfidenceLevel
	}
	for i := range d.Variants {
		if d.Variants[i].Weight == 0 {
			d.Variants[i].Weight = DefaultWeight
		}
	}
}
