package models

import "time"

const (
	// SubmissionStatusNew indicates the attempt exists but holds no content.
	SubmissionStatusNew = "new"
	// SubmissionStatusDraft indicates work in progress not yet submitted.
	SubmissionStatusDraft = "draft"
	// SubmissionStatusSubmitted indicates a final attempt ready for review.
	SubmissionStatusSubmitted = "submitted"
)

// Submission mirrors the host's submission record for an assignment attempt.
type Submission struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	AssignmentID  uint      `gorm:"not null;index:idx_submission_pair" json:"assignment_id"`
	StudentID     uint      `gorm:"not null;index:idx_submission_pair" json:"student_id"`
	Status        string    `gorm:"size:32;not null" json:"status"`
	AttemptNumber int       `gorm:"not null;default:1" json:"attempt_number"`
	OnlineText    string    `gorm:"type:text" json:"online_text"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsSubmitted reports whether the attempt is final and reviewable.
func (s Submission) IsSubmitted() bool {
	return s.Status == SubmissionStatusSubmitted
}

// Student mirrors the host's user record for enrolled students.
type Student struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:255;not null" json:"name"`
	Email string `gorm:"size:255;uniqueIndex" json:"email"`
}
