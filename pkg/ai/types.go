package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrMalformedResponse indicates the model returned JSON outside the
// documented shape. Callers treat it as "no match" rather than a failure.
var ErrMalformedResponse = errors.New("ai response not in expected format")

// ReviewInput carries the artefacts needed to review one submission.
type ReviewInput struct {
	CourseName      string
	AssignmentTitle string
	AssignmentIntro string
	StudentName     string
	SubmissionText  string
	MaxGrade        float64
	GradingMethod   string
	RubricCriteria  []CriterionSpec
	GuideCriteria   []CriterionSpec
}

// CriterionSpec describes one grading criterion for the prompt.
type CriterionSpec struct {
	Name        string
	Description string
	MaxScore    float64
	Levels      []LevelSpec
}

// LevelSpec describes one selectable rubric level for the prompt.
type LevelSpec struct {
	Points     float64
	Definition string
}

// Result is the AI response decoded once at the provider boundary. Rubric and
// Guide are mutually exclusive; both are nil for a plain text-and-grade reply.
type Result struct {
	Reply  string
	Grade  *float64
	Rubric RubricPayload
	Guide  GuidePayload
}

// RubricPayload is the ordered criterion list emitted on the rubric path.
type RubricPayload []RubricItem

// RubricItem is one AI-selected criterion entry. The model is expected to
// emit exactly one selected level; consumers use only the first.
type RubricItem struct {
	Name   string            `json:"name"`
	Levels []RubricItemLevel `json:"levels"`
}

// RubricItemLevel carries the points the model picked and its remark.
type RubricItemLevel struct {
	Points  float64 `json:"points"`
	Comment string  `json:"comment"`
}

// GuidePayload maps criterion names to guide scores.
type GuidePayload map[string]GuideItem

// GuideItem is one AI-scored marking guide entry.
type GuideItem struct {
	Grade float64   `json:"grade"`
	Reply ReplyText `json:"reply"`
}

// ReplyText accepts either a single string or an ordered list of strings,
// which is joined with ", ".
type ReplyText string

// UnmarshalJSON implements the string-or-list decoding rule.
func (r *ReplyText) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*r = ReplyText(single)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}

	*r = ReplyText(strings.Join(list, ", "))
	return nil
}

// Reviewer describes an AI model capable of reviewing a submission.
type Reviewer interface {
	Review(ctx context.Context, input ReviewInput) (Result, error)
}
