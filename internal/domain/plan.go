package domain

import (
	"strconv"
	"strings"
	"time"
)

// Plan is a persisted assembly plan.
type Plan struct {
	ID             int64
	RequestSummary string
	Project        string
	Checklist      []string
	UploadID       *int64
	CreatedAt      time.Time
}

// PlanSummary is the listing projection of a plan.
type PlanSummary struct {
	ID             int64
	RequestSummary string
	Project        string
	StepsCount     int
	CreatedAt      time.Time
}

// Step is a single instruction of a plan together with its illustration and
// animation job.
type Step struct {
	ID                 int64
	PlanID             int64
	Identifier         string
	Position           int
	Title              string
	Description        string
	Notes              string
	IllustrationKey    string
	IllustrationURL    string
	Animation          Animation
	AnimationUpdatedAt time.Time
	CreatedAt          time.Time
}

// DisplayID returns the plan-level step identifier, falling back to the
// database id when the plan did not name its steps.
func (s Step) DisplayID() string {
	if id := strings.TrimSpace(s.Identifier); id != "" {
		return id
	}
	return strconv.FormatInt(s.ID, 10)
}

// HasIllustration reports whether the step has a stored illustration to seed
// an animation from.
func (s Step) HasIllustration() bool {
	return strings.TrimSpace(s.IllustrationKey) != "" || strings.TrimSpace(s.IllustrationURL) != ""
}

// AnimationTarget is a step loaded together with the plan context needed to
// start an animation for it.
type AnimationTarget struct {
	Step
	RequestSummary string
}
