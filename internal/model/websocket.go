package model

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage represents a pipeline checkpoint update
type WSProgressMessage struct {
	Type    string `json:"type"`
	StoryID string `json:"storyId"`
	Status  Status `json:"status"`
	Step    string `json:"step,omitempty"`
}

// WSCompleteMessage represents story completion
type WSCompleteMessage struct {
	Type    string `json:"type"`
	StoryID string `json:"storyId"`
	Title   string `json:"title,omitempty"`
}

// WSErrorMessage represents a failed story
type WSErrorMessage struct {
	Type    string  `json:"type"`
	StoryID string  `json:"storyId"`
	Error   WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
