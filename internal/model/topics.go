package model

// TopicSuggestionCount is the fixed number of suggestions returned
const TopicSuggestionCount = 9

// TopicSuggestion is one proposed story topic
type TopicSuggestion struct {
	Text  string `json:"text"`
	Emoji string `json:"emoji"`
}

// TopicSuggestRequest asks for topic ideas tailored to the reader
type TopicSuggestRequest struct {
	AgeYears int    `json:"ageYears" validate:"required,min=1,max=17"`
	Gender   string `json:"gender" validate:"omitempty,oneof=girl boy other"`
}

// TopicSuggestResponse carries the ordered suggestion list
type TopicSuggestResponse struct {
	Topics []TopicSuggestion `json:"topics"`
}
