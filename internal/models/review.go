package models

import (
	"time"

	"gorm.io/datatypes"
)

// ReviewStatus enumerates the lifecycle states of a pending review.
type ReviewStatus string

const (
	// ReviewStatusInitial marks a freshly created review record.
	ReviewStatusInitial ReviewStatus = "initial"
	// ReviewStatusQueued marks a review waiting in the delayed queue.
	ReviewStatusQueued ReviewStatus = "queued"
	// ReviewStatusProcessing marks a review whose AI call is in flight.
	ReviewStatusProcessing ReviewStatus = "processing"
	// ReviewStatusPending marks a stored AI response awaiting human decision.
	ReviewStatusPending ReviewStatus = "pending"
	// ReviewStatusApprove marks a review whose feedback was applied.
	ReviewStatusApprove ReviewStatus = "approve"
	// ReviewStatusRejected marks a review declined by the teacher.
	ReviewStatusRejected ReviewStatus = "rejected"
)

// reviewTransitions encodes the allowed state transitions. Approve loops back
// to itself when a human edit is re-synced onto an applied review.
var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	ReviewStatusInitial:    {ReviewStatusQueued, ReviewStatusProcessing, ReviewStatusPending},
	ReviewStatusQueued:     {ReviewStatusProcessing, ReviewStatusPending},
	ReviewStatusProcessing: {ReviewStatusPending, ReviewStatusInitial},
	ReviewStatusPending:    {ReviewStatusApprove, ReviewStatusRejected, ReviewStatusProcessing},
	ReviewStatusApprove:    {ReviewStatusApprove},
	ReviewStatusRejected:   {},
}

// Valid reports whether the status is a known lifecycle state.
func (s ReviewStatus) Valid() bool {
	_, ok := reviewTransitions[s]
	return ok
}

// CanTransition reports whether moving from the receiver to the target state
// is allowed. Supersession (a resubmission creating a brand-new initial
// record) is not a transition and is not covered here.
func (s ReviewStatus) CanTransition(to ReviewStatus) bool {
	for _, allowed := range reviewTransitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transitions.
func (s ReviewStatus) Terminal() bool {
	return len(reviewTransitions[s]) == 0
}

// Precedence orders statuses for latest-token resolution. Higher wins.
func (s ReviewStatus) Precedence() int {
	switch s {
	case ReviewStatusPending:
		return 5
	case ReviewStatusApprove:
		return 4
	case ReviewStatusProcessing:
		return 3
	case ReviewStatusQueued:
		return 2
	case ReviewStatusInitial:
		return 1
	default:
		return 0
	}
}

// PendingReview tracks one AI review cycle for an (assignment, student) pair.
// The store may hold superseded historical rows; the live record is the one
// with the greatest (modified_at, id).
type PendingReview struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	CourseID       uint           `gorm:"not null;index" json:"course_id"`
	AssignmentID   uint           `gorm:"not null;index:idx_review_pair" json:"assignment_id"`
	StudentID      uint           `gorm:"not null;index:idx_review_pair" json:"student_id"`
	Title          string         `gorm:"size:255" json:"title"`
	Message        *string        `gorm:"type:text" json:"message"`
	Grade          *float64       `json:"grade"`
	RubricResponse datatypes.JSON `json:"rubric_response"`
	GuideResponse  datatypes.JSON `json:"guide_response"`
	Status         ReviewStatus   `gorm:"size:32;not null;index" json:"status"`
	ApprovalToken  string         `gorm:"size:64;not null;uniqueIndex" json:"approval_token"`
	CreatedAt      time.Time      `json:"created_at"`
	ModifiedAt     time.Time      `gorm:"index" json:"modified_at"`
	ModifiedBy     uint           `json:"modified_by"`
}

// HasStructuredResponse reports whether a rubric or guide payload is stored.
func (r PendingReview) HasStructuredResponse() bool {
	return len(r.RubricResponse) > 0 || len(r.GuideResponse) > 0
}
