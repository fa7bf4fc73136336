package model

import "time"

// Story represents one story-creation request and its progress record.
// It is created in status queued by the intake endpoint and mutated only
// by the pipeline afterwards.
type Story struct {
	ID                string      `json:"id"`
	OwnerID           string      `json:"ownerId"`
	Topic             string      `json:"topic,omitempty"`
	Hero              string      `json:"hero"` // protagonist descriptor
	LengthClass       LengthClass `json:"lengthClass"`
	VoiceID           string      `json:"voiceId,omitempty"`
	ReferenceImageURL string      `json:"referenceImageUrl,omitempty"`
	Status            Status      `json:"status"`
	Error             *string     `json:"errorMessage,omitempty"`
	Title             string      `json:"title,omitempty"`
	Sections          []Section   `json:"sections"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
}

// Section is one unit of the story. Created as an empty placeholder when
// planning completes; each content field is written exactly once.
type Section struct {
	Index    int    `json:"index"`
	Brief    string `json:"brief"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	AudioURL string `json:"audioUrl,omitempty"`
}

// StoryCreateRequest is the intake payload for a new story
type StoryCreateRequest struct {
	Topic             string      `json:"topic" validate:"max=300"`
	Hero              string      `json:"hero" validate:"required,max=600"`
	LengthClass       LengthClass `json:"lengthClass" validate:"required,oneof=short medium long"`
	VoiceID           string      `json:"voiceId" validate:"max=100"`
	ReferenceImageURL string      `json:"referenceImageUrl" validate:"omitempty,url"`
}

// StoryCreateResponse acknowledges a queued story
type StoryCreateResponse struct {
	StoryID   string    `json:"storyId"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// StoryStatusResponse is the progress view of a story
type StoryStatusResponse struct {
	StoryID      string    `json:"storyId"`
	Status       Status    `json:"status"`
	Title        string    `json:"title,omitempty"`
	SectionCount int       `json:"sectionCount"`
	Error        *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StoryDeleteResponse acknowledges story deletion
type StoryDeleteResponse struct {
	Success bool   `json:"success"`
	StoryID string `json:"storyId"`
}
