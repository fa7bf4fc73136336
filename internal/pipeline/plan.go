package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/api/internal/model"
)

// Plan is the ephemeral output of the plan stage. It exists only until the
// placeholder sections are written; the briefs live on inside them.
type Plan struct {
	Title  string
	Briefs []string
}

const planSystemPrompt = `You are a children's story planner.
You break a story idea into a title and a sequence of short section briefs.
Always output your response as valid JSON in the exact format requested.
Do not include any text outside the JSON structure.`

// planStage produces the title and the ordered section briefs. Any parse or
// validation failure fails the stage; there is deliberately no fallback to a
// canned plan, because that would mask a broken upstream service as success.
func (c *Controller) planStage(ctx context.Context, story *model.Story) (*Plan, error) {
	count := story.LengthClass.SectionCount()
	if count == 0 {
		return nil, fmt.Errorf("unknown length class %q", story.LengthClass)
	}

	title, err := c.generateTitle(ctx, story)
	if err != nil {
		return nil, err
	}

	briefs, err := c.generateBriefs(ctx, story, count)
	if err != nil {
		return nil, err
	}

	return &Plan{Title: title, Briefs: briefs}, nil
}

func (c *Controller) generateTitle(ctx context.Context, story *model.Story) (string, error) {
	prompt := fmt.Sprintf(`Invent a short, playful title for a children's story.
Protagonist: %s
Topic: %s

Output as JSON: {"title": "..."}`, story.Hero, topicOrDefault(story.Topic))

	response, err := c.llm.ChatCompletion(ctx, planSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}

	title, err := parseTitle(response)
	if err != nil {
		return "", fmt.Errorf("title response: %w", err)
	}
	return title, nil
}

func (c *Controller) generateBriefs(ctx context.Context, story *model.Story, count int) ([]string, error) {
	prompt := fmt.Sprintf(`Plan a children's story as exactly %d sections.
Protagonist: %s
Topic: %s

Each section gets one brief: a single sentence describing what happens in it.
The briefs must read in order as one coherent story arc.

Output as JSON: {"sections": ["brief 1", "brief 2", ...]}`,
		count, story.Hero, topicOrDefault(story.Topic))

	response, err := c.llm.ChatCompletion(ctx, planSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	briefs, err := parseBriefs(response, count)
	if err != nil {
		return nil, fmt.Errorf("plan response: %w", err)
	}
	return briefs, nil
}

func parseTitle(response string) (string, error) {
	var result struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(response)), &result); err != nil {
		// Some models return the bare title without wrapping
		title := strings.Trim(strings.TrimSpace(response), `"`)
		if title == "" || strings.ContainsAny(title, "{}[]") {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
		result.Title = title
	}

	title := strings.TrimSpace(result.Title)
	if title == "" {
		return "", fmt.Errorf("title is empty")
	}
	return title, nil
}

// parseBriefs accepts a structured object with a "sections" array, a bare
// JSON array, or either of those buried in surrounding prose. Everything
// else is a failure.
func parseBriefs(response string, want int) ([]string, error) {
	var briefs []string

	var structured struct {
		Sections []string `json:"sections"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(response)), &structured); err == nil && structured.Sections != nil {
		briefs = structured.Sections
	} else if err := json.Unmarshal([]byte(extractJSONArray(response)), &briefs); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	cleaned := make([]string, 0, len(briefs))
	for _, b := range briefs {
		if b = strings.TrimSpace(b); b != "" {
			cleaned = append(cleaned, b)
		}
	}

	if len(cleaned) == 0 {
		return nil, fmt.Errorf("plan is empty")
	}
	if len(cleaned) != want {
		return nil, fmt.Errorf("expected %d briefs, got %d", want, len(cleaned))
	}
	return cleaned, nil
}

// extractJSONObject attempts to extract a JSON object from a response that
// may contain extra text
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// extractJSONArray attempts to extract a JSON array from a response that
// may contain extra text
func extractJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

func topicOrDefault(topic string) string {
	if strings.TrimSpace(topic) == "" {
		return "a surprise adventure of your choosing"
	}
	return topic
}
