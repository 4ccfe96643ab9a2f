package animation

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// StepInput is the descriptive part of a step used to build a prompt.
type StepInput struct {
	ID          string
	Title       string
	Description string
	Notes       string
}

// PlanContext is the plan-level information shared by every step prompt.
type PlanContext struct {
	RequestSummary string
	Project        string
}

// BuildStepPrompt renders the video prompt for step index (zero based) out of
// totalSteps.
func BuildStepPrompt(step StepInput, index, totalSteps int, pc PlanContext) string {
	if totalSteps <= 0 {
		totalSteps = 1
	}
	if index < 0 {
		index = 0
	}

	lines := []string{
		"Animate this black-and-white assembly manual illustration into a short, silent instructional clip.",
		"Keep the clean axonometric line-art style, a static camera, and a plain white background. Do not add text, arrows or people beyond hands.",
		"Show only the motion described by the current step, ending on the completed state.",
	}
	if summary := clean(pc.RequestSummary); summary != "" {
		lines = append(lines, "Overall project: "+summary)
	}
	if project := clean(pc.Project); project != "" {
		lines = append(lines, "Product: "+project)
	}
	lines = append(lines,
		fmt.Sprintf("Current step (%d/%d): %s", index+1, totalSteps, clean(step.Title)),
		"Step details: "+clean(step.Description),
	)
	if notes := clean(step.Notes); notes != "" {
		lines = append(lines, "Additional notes: "+notes)
	}
	return strings.Join(lines, "\n\n")
}

// NormalizePrompt trims and NFC-normalizes free-form prompt text.
func NormalizePrompt(s string) string {
	return clean(s)
}

func clean(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}
