package models

import (
	"time"

	"gorm.io/gorm"
)

// Activation triggers
const (
	TriggerSignal = "signal"
	TriggerHTTP   = "http"
	TriggerStart  = "startup"
)

// Activation is one finished converge animation session
type Activation struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SessionID  string         `gorm:"not null;uniqueIndex" json:"session_id"`
	Timestamp  time.Time      `gorm:"not null;index" json:"timestamp"` // session start
	TargetX    int            `gorm:"not null" json:"target_x"`
	TargetY    int            `gorm:"not null" json:"target_y"`
	Width      int            `gorm:"not null" json:"width"`  // overlay width
	Height     int            `gorm:"not null" json:"height"` // overlay height
	Elements   int            `gorm:"not null" json:"elements"`
	DurationMs int64          `gorm:"not null;default:0" json:"duration_ms"`
	Outcome    string         `gorm:"not null;index" json:"outcome"` // "completed" or "aborted"
	Trigger    string         `gorm:"not null;default:''" json:"trigger"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

type OutcomeSummary struct {
	Outcome       string  `json:"outcome"`
	Count         int     `json:"count"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	Percentage    float64 `json:"percentage,omitempty"`
}

type HourSummary struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period        ReportPeriod     `json:"period"`
	Outcomes      []OutcomeSummary `json:"outcomes"`
	Hours         []HourSummary    `json:"hours"`
	Activations   int              `json:"activations"`
	Failures      int              `json:"failures"`
	AvgDurationMs float64          `json:"avg_duration_ms"`
	GeneratedAt   time.Time        `json:"generated_at"`
}
