package veo

import "fmt"

// VideoConfig holds the generation parameters accepted by Veo. Nil and empty
// fields are left to the defaults.
type VideoConfig struct {
	NumberOfVideos   *int   `json:"numberOfVideos,omitempty"`
	DurationSeconds  *int   `json:"durationSeconds,omitempty"`
	AspectRatio      string `json:"aspectRatio,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	EnhancePrompt    *bool  `json:"enhancePrompt,omitempty"`
	GenerateAudio    *bool  `json:"generateAudio,omitempty"`
}

// DefaultVideoConfig is one six second 16:9 clip at 720p.
func DefaultVideoConfig() VideoConfig {
	one, six := 1, 6
	return VideoConfig{
		NumberOfVideos:  &one,
		DurationSeconds: &six,
		AspectRatio:     "16:9",
		Resolution:      "720p",
	}
}

// Merge overlays the set fields of override onto c.
func (c VideoConfig) Merge(override *VideoConfig) VideoConfig {
	if override == nil {
		return c
	}
	out := c
	if override.NumberOfVideos != nil {
		out.NumberOfVideos = override.NumberOfVideos
	}
	if override.DurationSeconds != nil {
		out.DurationSeconds = override.DurationSeconds
	}
	if override.AspectRatio != "" {
		out.AspectRatio = override.AspectRatio
	}
	if override.Resolution != "" {
		out.Resolution = override.Resolution
	}
	if override.PersonGeneration != "" {
		out.PersonGeneration = override.PersonGeneration
	}
	if override.NegativePrompt != "" {
		out.NegativePrompt = override.NegativePrompt
	}
	if override.EnhancePrompt != nil {
		out.EnhancePrompt = override.EnhancePrompt
	}
	if override.GenerateAudio != nil {
		out.GenerateAudio = override.GenerateAudio
	}
	return out
}

// Validate checks the parameter ranges Veo accepts.
func (c VideoConfig) Validate() error {
	if c.NumberOfVideos != nil && (*c.NumberOfVideos < 1 || *c.NumberOfVideos > 4) {
		return fmt.Errorf("numberOfVideos must be between 1 and 4")
	}
	if c.DurationSeconds != nil && (*c.DurationSeconds < 1 || *c.DurationSeconds > 8) {
		return fmt.Errorf("durationSeconds must be between 1 and 8")
	}
	switch c.AspectRatio {
	case "", "16:9", "9:16":
	default:
		return fmt.Errorf("aspectRatio must be 16:9 or 9:16")
	}
	switch c.Resolution {
	case "", "720p", "1080p":
	default:
		return fmt.Errorf("resolution must be 720p or 1080p")
	}
	switch c.PersonGeneration {
	case "", "dont_allow", "allow_adult":
	default:
		return fmt.Errorf("personGeneration must be dont_allow or allow_adult")
	}
	return nil
}
