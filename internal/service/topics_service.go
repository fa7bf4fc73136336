package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
)

// TopicsService suggests story topics tailored to the reader
type TopicsService struct {
	llm client.ChatCompleter
}

func NewTopicsService(llm client.ChatCompleter) *TopicsService {
	return &TopicsService{llm: llm}
}

const topicsSystemPrompt = `You suggest story topics for young children.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

const defaultTopicEmoji = "✨"

// Suggest returns exactly TopicSuggestionCount ordered suggestions
func (s *TopicsService) Suggest(ctx context.Context, req *model.TopicSuggestRequest) (*model.TopicSuggestResponse, error) {
	response, err := s.llm.ChatCompletion(ctx, topicsSystemPrompt, s.buildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("topic suggestion failed: %w", err)
	}

	topics, err := parseTopics(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse topic response: %w", err)
	}

	return &model.TopicSuggestResponse{Topics: topics}, nil
}

func (s *TopicsService) buildPrompt(req *model.TopicSuggestRequest) string {
	audience := fmt.Sprintf("a %d-year-old child", req.AgeYears)
	if req.Gender != "" && req.Gender != "other" {
		audience = fmt.Sprintf("a %d-year-old %s", req.AgeYears, req.Gender)
	}

	return fmt.Sprintf(`Suggest %d story topics for %s.
Each topic is a short phrase plus one or two matching emoji.

Output as JSON: {"topics": [{"text": "...", "emoji": "..."}]}`,
		model.TopicSuggestionCount, audience)
}

// parseTopics validates the element shape and repairs malformed entries
// (bare strings, missing emoji, surrounding whitespace) before giving up.
// Too few usable entries is a failure; extras are dropped.
func parseTopics(response string) ([]model.TopicSuggestion, error) {
	response = extractJSON(response)

	var result struct {
		Topics []json.RawMessage `json:"topics"`
	}
	if err := json.Unmarshal([]byte(response), &result.Topics); err != nil {
		if err := json.Unmarshal([]byte(response), &result); err != nil {
			return nil, fmt.Errorf("invalid JSON response: %w", err)
		}
	}

	topics := make([]model.TopicSuggestion, 0, model.TopicSuggestionCount)
	for _, raw := range result.Topics {
		if topic, ok := repairTopic(raw); ok {
			topics = append(topics, topic)
		}
		if len(topics) == model.TopicSuggestionCount {
			break
		}
	}

	if len(topics) < model.TopicSuggestionCount {
		return nil, fmt.Errorf("expected %d topics, got %d usable", model.TopicSuggestionCount, len(topics))
	}
	return topics, nil
}

func repairTopic(raw json.RawMessage) (model.TopicSuggestion, bool) {
	var topic model.TopicSuggestion
	if err := json.Unmarshal(raw, &topic); err != nil {
		// Some models emit bare strings instead of objects
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return model.TopicSuggestion{}, false
		}
		topic.Text = text
	}

	topic.Text = strings.TrimSpace(topic.Text)
	topic.Emoji = strings.TrimSpace(topic.Emoji)
	if topic.Text == "" {
		return model.TopicSuggestion{}, false
	}
	if topic.Emoji == "" {
		topic.Emoji = defaultTopicEmoji
	}
	return topic, true
}

// extractJSON attempts to extract JSON from a response that may contain
// extra text
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	end := strings.LastIndexAny(s, "}]")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}
