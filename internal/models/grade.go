package models

import "time"

// WorkflowStateReleased is the terminal marking-workflow marker set when the
// reconciliation engine applies a grade.
const WorkflowStateReleased = "released"

// GradeRecord is the host grading instance for an (assignment, student) pair.
type GradeRecord struct {
	ID              uint         `gorm:"primaryKey" json:"id"`
	AssignmentID    uint         `gorm:"not null;index:idx_grade_pair" json:"assignment_id"`
	StudentID       uint         `gorm:"not null;index:idx_grade_pair" json:"student_id"`
	Grade           *float64     `json:"grade"`
	GraderID        uint         `json:"grader_id"`
	FeedbackComment string       `gorm:"type:text" json:"feedback_comment"`
	WorkflowState   string       `gorm:"size:32" json:"workflow_state"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	RubricFills     []RubricFill `gorm:"foreignKey:GradeRecordID" json:"rubric_fills"`
	GuideFills      []GuideFill  `gorm:"foreignKey:GradeRecordID" json:"guide_fills"`
}

// RubricFill records the selected level and remark for one rubric criterion.
type RubricFill struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	GradeRecordID uint   `gorm:"not null;index:idx_rubric_fill,unique" json:"grade_record_id"`
	CriterionID   uint   `gorm:"not null;index:idx_rubric_fill,unique" json:"criterion_id"`
	LevelID       uint   `gorm:"not null" json:"level_id"`
	Remark        string `gorm:"type:text" json:"remark"`
}

// GuideFill records the score and remark for one marking guide criterion.
type GuideFill struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	GradeRecordID uint    `gorm:"not null;index:idx_guide_fill,unique" json:"grade_record_id"`
	CriterionID   uint    `gorm:"not null;index:idx_guide_fill,unique" json:"criterion_id"`
	Score         float64 `gorm:"not null" json:"score"`
	Remark        string  `gorm:"type:text" json:"remark"`
}
