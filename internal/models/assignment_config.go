package models

import "time"

// AssignmentConfig holds the per-assignment AI review settings. Read-mostly;
// served through the TTL config cache.
type AssignmentConfig struct {
	AssignmentID uint      `gorm:"primaryKey" json:"assignment_id"`
	EnableAI     bool      `gorm:"not null;default:false" json:"enable_ai"`
	Autograde    bool      `gorm:"not null;default:false" json:"autograde"`
	UseDelay     bool      `gorm:"not null;default:false" json:"use_delay"`
	DelayMinutes int       `gorm:"not null;default:1" json:"delay_minutes"`
	GraderID     uint      `json:"grader_id"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Delay returns the scheduling delay, never shorter than one minute.
func (c AssignmentConfig) Delay() time.Duration {
	minutes := c.DelayMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}
