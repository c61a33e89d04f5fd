package models

import "time"

// GradingMethod identifies the grading scheme active on an assignment.
type GradingMethod string

const (
	// GradingMethodSimple grades with a single numeric value.
	GradingMethodSimple GradingMethod = "simple"
	// GradingMethodRubric grades against criteria with discrete point levels.
	GradingMethodRubric GradingMethod = "rubric"
	// GradingMethodGuide grades against criteria on a continuous scale.
	GradingMethodGuide GradingMethod = "guide"
)

// Assignment mirrors the host module's assignment definition, including the
// live grading scheme the reconciliation engine matches against.
type Assignment struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	CourseID       uint              `gorm:"not null;index" json:"course_id"`
	Title          string            `gorm:"size:255;not null" json:"title"`
	Intro          string            `gorm:"type:text" json:"intro"`
	MaxGrade       float64           `gorm:"not null" json:"max_grade"`
	GradingMethod  GradingMethod     `gorm:"size:16;not null;default:'simple'" json:"grading_method"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	RubricCriteria []RubricCriterion `json:"rubric_criteria"`
	GuideCriteria  []GuideCriterion  `json:"guide_criteria"`
}

// UsesScale reports whether the assignment grades against a lookup scale.
// Scales are encoded as a negative max grade and are not supported by the
// automatic numeric fallback.
func (a Assignment) UsesScale() bool {
	return a.MaxGrade < 0
}

// RubricCriterion is one named row of a rubric definition.
type RubricCriterion struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	AssignmentID uint          `gorm:"not null;index" json:"assignment_id"`
	Name         string        `gorm:"size:255;not null" json:"name"`
	SortOrder    int           `gorm:"not null;default:0" json:"sort_order"`
	Levels       []RubricLevel `gorm:"foreignKey:CriterionID" json:"levels"`
}

// RubricLevel is one selectable point level within a rubric criterion.
type RubricLevel struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	CriterionID uint    `gorm:"not null;index" json:"criterion_id"`
	Points      float64 `gorm:"not null" json:"points"`
	Definition  string  `gorm:"type:text" json:"definition"`
}

// GuideCriterion is one named row of a marking guide definition.
type GuideCriterion struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	AssignmentID uint    `gorm:"not null;index" json:"assignment_id"`
	Name         string  `gorm:"size:255;not null" json:"name"`
	Description  string  `gorm:"type:text" json:"description"`
	MaxScore     float64 `gorm:"not null" json:"max_score"`
	SortOrder    int     `gorm:"not null;default:0" json:"sort_order"`
}
