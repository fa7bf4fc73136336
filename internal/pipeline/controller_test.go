package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/store"
)

// happyLLM answers the three prompt kinds the pipeline issues: a title, a
// plan with the requested brief count, and per-section prose.
func happyLLM(t *testing.T) chatFunc {
	t.Helper()
	return func(ctx context.Context, system, user string) (string, error) {
		switch {
		case strings.Contains(user, `{"title"`):
			return `{"title": "Milo and the Moon Kite"}`, nil
		case strings.Contains(user, "Plan a children's story"):
			var count int
			if _, err := fmt.Sscanf(user, "Plan a children's story as exactly %d sections.", &count); err != nil {
				return "", fmt.Errorf("unexpected plan prompt: %v", err)
			}
			briefs := make([]string, count)
			for i := range briefs {
				briefs[i] = fmt.Sprintf("\"brief %d\"", i+1)
			}
			return fmt.Sprintf(`{"sections": [%s]}`, strings.Join(briefs, ", ")), nil
		case strings.HasPrefix(user, "Write section"):
			var i, total int
			fmt.Sscanf(user, "Write section %d of %d", &i, &total)
			return fmt.Sprintf("Once upon a time, part %d of %d.", i, total), nil
		}
		return "", fmt.Errorf("unexpected prompt: %s", user)
	}
}

func happyImages() imageFunc {
	return func(ctx context.Context, req *client.ImageRequest) ([]byte, error) {
		return []byte("png-bytes"), nil
	}
}

func happySpeech() speechFunc {
	return func(ctx context.Context, text, voiceID string) ([]byte, error) {
		return []byte("mp3-bytes"), nil
	}
}

func seedStory(t *testing.T, stories *fakeStore, length model.LengthClass) *model.Story {
	t.Helper()
	story := &model.Story{
		ID:          "story-1",
		OwnerID:     "owner-1",
		Topic:       "the sea",
		Hero:        "Milo the fox",
		LengthClass: length,
		Status:      model.Queued(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := stories.Create(context.Background(), story); err != nil {
		t.Fatalf("seed story: %v", err)
	}
	return story
}

func TestRunCompletesShortStory(t *testing.T) {
	stories := newFakeStore()
	blobs := newFakeBlobs()
	seedStory(t, stories, model.LengthShort)

	c := NewController(stories, blobs, happyLLM(t), happyImages(), happySpeech(), nil, "voice-default", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := stories.Get(context.Background(), "story-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != model.Complete() {
		t.Fatalf("status = %s, want complete", got.Status)
	}
	if got.Error != nil {
		t.Fatalf("errorMessage = %q, want cleared", *got.Error)
	}
	if got.Title != "Milo and the Moon Kite" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Sections) != 3 {
		t.Fatalf("sections = %d, want 3", len(got.Sections))
	}
	for i, s := range got.Sections {
		if s.Brief == "" || s.Text == "" || s.ImageURL == "" || s.AudioURL == "" {
			t.Errorf("section %d incomplete: %+v", i, s)
		}
		wantImage := fmt.Sprintf("https://cdn.test/stories/story-1/sections/%d/image.png", i)
		if s.ImageURL != wantImage {
			t.Errorf("section %d imageUrl = %q, want %q", i, s.ImageURL, wantImage)
		}
	}
	if len(blobs.uploads) != 6 {
		t.Errorf("uploads = %d, want 6", len(blobs.uploads))
	}
}

// Every persisted status must order strictly after the one before it. The
// section count after planning never changes.
func TestRunStatusSequenceIsMonotonic(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthMedium)

	c := NewController(stories, newFakeBlobs(), happyLLM(t), happyImages(), happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	writes := stories.statusWrites()
	if len(writes) == 0 {
		t.Fatal("no status writes recorded")
	}
	prev := model.Queued()
	for _, s := range writes {
		if !prev.Before(s) {
			t.Fatalf("status %s written after %s; sequence: %v", s, prev, writes)
		}
		prev = s
	}
	if writes[len(writes)-1] != model.Complete() {
		t.Errorf("final status write = %s, want complete", writes[len(writes)-1])
	}

	// 1 planning + 1 plan-consolidated (section_text_0) + per section:
	// text checkpoint (sections 1..4), image, audio; + 1 complete.
	want := 1 + 1 + 4 + 5*2 + 1
	if len(writes) != want {
		t.Errorf("status writes = %d, want %d: %v", len(writes), want, writes)
	}
}

func TestRunSkipsNonQueuedStory(t *testing.T) {
	stories := newFakeStore()
	story := seedStory(t, stories, model.LengthShort)
	story.Status = model.SectionText(1)
	stories.stories[story.ID] = story

	llm := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		t.Fatal("LLM called for a non-queued story")
		return "", nil
	})
	c := NewController(stories, newFakeBlobs(), llm, happyImages(), happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := stories.updateCount(); n != 0 {
		t.Errorf("updates = %d, want 0", n)
	}
}

func TestRunPlanWritesPlaceholdersAtomically(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)

	// Fail the very first section text call so the run stops right after
	// the consolidated plan write.
	llm := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		if strings.HasPrefix(user, "Write section") {
			return "", fmt.Errorf("text service down")
		}
		return happyLLM(t)(ctx, system, user)
	})

	c := NewController(stories, newFakeBlobs(), llm, happyImages(), happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err == nil {
		t.Fatal("Run succeeded, want error")
	}

	// Find the update that carried the title: it must also carry the full
	// placeholder array and the advance into section_text_0.
	var found bool
	for _, fields := range stories.updates {
		if _, ok := fields[store.FieldTitle]; !ok {
			continue
		}
		found = true
		sections, ok := fields[store.FieldSections].([]model.Section)
		if !ok || len(sections) != 3 {
			t.Fatalf("plan write sections = %#v, want 3 placeholders", fields[store.FieldSections])
		}
		for i, s := range sections {
			if s.Index != i || s.Brief == "" {
				t.Errorf("placeholder %d = %+v", i, s)
			}
			if s.Text != "" || s.ImageURL != "" || s.AudioURL != "" {
				t.Errorf("placeholder %d not empty: %+v", i, s)
			}
		}
		if fields[store.FieldStatus] != model.SectionText(0) {
			t.Errorf("plan write status = %v, want section_text_0", fields[store.FieldStatus])
		}
	}
	if !found {
		t.Fatal("no update carried the title")
	}
}

func TestRunFailsOnEmptyPlan(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)

	llm := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		if strings.Contains(user, `{"title"`) {
			return `{"title": "A Title"}`, nil
		}
		return `{"sections": []}`, nil
	})
	c := NewController(stories, newFakeBlobs(), llm, happyImages(), happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err == nil {
		t.Fatal("Run succeeded, want error")
	}

	got, _ := stories.Get(context.Background(), "story-1")
	if got.Status != model.Errored() {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "empty") {
		t.Errorf("errorMessage = %v, want mention of empty plan", got.Error)
	}
	if got.Title != "" || len(got.Sections) != 0 {
		t.Errorf("failed plan left partial content: title=%q sections=%d", got.Title, len(got.Sections))
	}
}

// An empty text response mid-story is a stage failure that keeps earlier
// sections intact and names the failed section in the message.
func TestRunTextFailureKeepsEarlierSections(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)

	llm := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		if strings.HasPrefix(user, "Write section 2 ") {
			return "   ", nil
		}
		return happyLLM(t)(ctx, system, user)
	})
	c := NewController(stories, newFakeBlobs(), llm, happyImages(), happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err == nil {
		t.Fatal("Run succeeded, want error")
	}

	got, _ := stories.Get(context.Background(), "story-1")
	if got.Status != model.Errored() {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "section 1") {
		t.Errorf("errorMessage = %v, want mention of section 1", got.Error)
	}
	if got.Sections[0].Text == "" || got.Sections[0].ImageURL == "" || got.Sections[0].AudioURL == "" {
		t.Errorf("section 0 lost content: %+v", got.Sections[0])
	}
	if got.Sections[1].Text != "" {
		t.Errorf("section 1 text = %q, want empty", got.Sections[1].Text)
	}
}

// An image failure must not lose the section's already-committed text.
func TestRunImageFailureKeepsCommittedText(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)

	images := imageFunc(func(ctx context.Context, req *client.ImageRequest) ([]byte, error) {
		if strings.Contains(req.Prompt, "brief 2") {
			return nil, fmt.Errorf("render service down")
		}
		return []byte("png-bytes"), nil
	})
	c := NewController(stories, newFakeBlobs(), happyLLM(t), images, happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err == nil {
		t.Fatal("Run succeeded, want error")
	}

	got, _ := stories.Get(context.Background(), "story-1")
	if got.Status != model.Errored() {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "section 1") || !strings.Contains(*got.Error, "image") {
		t.Errorf("errorMessage = %v, want image failure at section 1", got.Error)
	}
	if got.Sections[0].Text == "" || got.Sections[0].ImageURL == "" {
		t.Errorf("section 0 lost content: %+v", got.Sections[0])
	}
	if got.Sections[1].Text == "" {
		t.Error("section 1 text lost, should be committed before the image call")
	}
	if got.Sections[1].ImageURL != "" || got.Sections[1].AudioURL != "" {
		t.Errorf("section 1 has asset URLs after image failure: %+v", got.Sections[1])
	}
}

// The halt policy is uniform across assets: audio failure ends the run the
// same way image failure does.
func TestRunAudioFailureHalts(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)

	speech := speechFunc(func(ctx context.Context, text, voiceID string) ([]byte, error) {
		return nil, fmt.Errorf("voice service down")
	})
	c := NewController(stories, newFakeBlobs(), happyLLM(t), happyImages(), speech, nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err == nil {
		t.Fatal("Run succeeded, want error")
	}

	got, _ := stories.Get(context.Background(), "story-1")
	if got.Status != model.Errored() {
		t.Fatalf("status = %s, want error", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "audio") {
		t.Errorf("errorMessage = %v, want mention of audio", got.Error)
	}
}

// When the store itself is down the run aborts before any external call,
// and the story stays at its last committed checkpoint.
func TestRunStoreFailureAbortsBeforeWork(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)
	stories.failUpdates = true

	llm := chatFunc(func(ctx context.Context, system, user string) (string, error) {
		t.Fatal("LLM called after checkpoint write failed")
		return "", nil
	})
	c := NewController(stories, newFakeBlobs(), llm, happyImages(), happySpeech(), nil, "v", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err == nil {
		t.Fatal("Run succeeded, want error")
	}

	got, _ := stories.Get(context.Background(), "story-1")
	if got.Status != model.Queued() {
		t.Errorf("status = %s, want queued", got.Status)
	}
}

func TestRunUsesDefaultVoiceWhenUnset(t *testing.T) {
	stories := newFakeStore()
	seedStory(t, stories, model.LengthShort)

	var gotVoice string
	speech := speechFunc(func(ctx context.Context, text, voiceID string) ([]byte, error) {
		gotVoice = voiceID
		return []byte("mp3"), nil
	})
	c := NewController(stories, newFakeBlobs(), happyLLM(t), happyImages(), speech, nil, "fallback-voice", time.Minute)
	if err := c.Run(context.Background(), "story-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if gotVoice != "fallback-voice" {
		t.Errorf("voiceID = %q, want fallback-voice", gotVoice)
	}
}

func TestRunSectionCountMatchesLengthClass(t *testing.T) {
	for _, tc := range []struct {
		length model.LengthClass
		want   int
	}{
		{model.LengthShort, 3},
		{model.LengthMedium, 5},
		{model.LengthLong, 7},
	} {
		t.Run(string(tc.length), func(t *testing.T) {
			stories := newFakeStore()
			seedStory(t, stories, tc.length)

			c := NewController(stories, newFakeBlobs(), happyLLM(t), happyImages(), happySpeech(), nil, "v", time.Minute)
			if err := c.Run(context.Background(), "story-1"); err != nil {
				t.Fatalf("Run: %v", err)
			}
			got, _ := stories.Get(context.Background(), "story-1")
			if len(got.Sections) != tc.want {
				t.Errorf("sections = %d, want %d", len(got.Sections), tc.want)
			}
		})
	}
}
