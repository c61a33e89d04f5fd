package models

import "time"

// QueueItemTypeSubmission is the only queue item type currently scheduled.
const QueueItemTypeSubmission = "submission"

// ReviewQueueItem is a delayed review task keyed by
// (type, assignment_id, student_id) so duplicate triggers can be collapsed
// with a direct equality lookup.
type ReviewQueueItem struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Type         string    `gorm:"size:32;not null;index:idx_queue_key" json:"type"`
	AssignmentID uint      `gorm:"not null;index:idx_queue_key" json:"assignment_id"`
	StudentID    uint      `gorm:"not null;index:idx_queue_key" json:"student_id"`
	CreatedAt    time.Time `json:"created_at"`
	ProcessAfter time.Time `gorm:"not null;index" json:"process_after"`
	Processed    bool      `gorm:"not null;default:false;index" json:"processed"`
}

// Due reports whether the item is ready to be claimed at the reference time.
func (q ReviewQueueItem) Due(reference time.Time) bool {
	return !q.Processed && !q.ProcessAfter.After(reference)
}
