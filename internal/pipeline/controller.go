package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/store"
	"github.com/storyloom/api/internal/websocket"
)

// Controller drives one story from queued to complete or error. Every stage
// transition is committed durably before the next stage's external calls
// begin, so a crash leaves the document at the last finished checkpoint.
// The status field doubles as the single-writer token: a run only starts
// when it observes queued, which makes duplicate trigger deliveries no-ops.
type Controller struct {
	stories      store.StoryStore
	blobs        client.StorageClient
	llm          client.ChatCompleter
	images       client.ImageGenerator
	speech       client.SpeechSynthesizer
	hub          *websocket.Hub
	defaultVoice string
	budget       time.Duration
}

func NewController(
	stories store.StoryStore,
	blobs client.StorageClient,
	llm client.ChatCompleter,
	images client.ImageGenerator,
	speech client.SpeechSynthesizer,
	hub *websocket.Hub,
	defaultVoice string,
	budget time.Duration,
) *Controller {
	return &Controller{
		stories:      stories,
		blobs:        blobs,
		llm:          llm,
		images:       images,
		speech:       speech,
		hub:          hub,
		defaultVoice: defaultVoice,
		budget:       budget,
	}
}

// Run executes the full pipeline for one story. It returns an error only for
// the caller's logging; the user-visible failure channel is the story's
// status and errorMessage fields.
func (c *Controller) Run(ctx context.Context, storyID string) error {
	story, err := c.stories.Get(ctx, storyID)
	if err != nil {
		return fmt.Errorf("read story %s: %w", storyID, err)
	}

	// Single-writer guard: only a queued story may be driven. A retried or
	// duplicated trigger observes a later status and backs off silently.
	if story.Status.Stage != model.StageQueued {
		log.Printf("story %s is %s, skipping run", storyID, story.Status)
		return nil
	}

	if c.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.budget)
		defer cancel()
	}

	if err := c.checkpoint(ctx, storyID, model.Planning(), "Planning the story..."); err != nil {
		return c.fail(ctx, storyID, fmt.Sprintf("plan: %v", err))
	}

	plan, err := c.planStage(ctx, story)
	if err != nil {
		return c.fail(ctx, storyID, fmt.Sprintf("plan: %v", err))
	}

	// One atomic write: title, the dense placeholder array, and the advance
	// into the first section stage.
	sections := make([]model.Section, len(plan.Briefs))
	for i, brief := range plan.Briefs {
		sections[i] = model.Section{Index: i, Brief: brief}
	}
	err = c.stories.Update(ctx, storyID, store.Fields{
		store.FieldTitle:    plan.Title,
		store.FieldSections: sections,
		store.FieldStatus:   model.SectionText(0),
	})
	if err != nil {
		return c.fail(ctx, storyID, fmt.Sprintf("plan: save failed: %v", err))
	}
	c.notifyProgress(storyID, model.SectionText(0), "Writing section 1...")

	voiceID := story.VoiceID
	if voiceID == "" {
		voiceID = c.defaultVoice
	}

	// Sections run strictly in order; the text of earlier sections feeds the
	// prompt of later ones, and each image conditions the next.
	var priorText []string
	var prevImage []byte
	for i := range sections {
		// The plan write above already committed the section_text_0
		// checkpoint; later sections commit theirs here.
		if i > 0 {
			if err := c.checkpoint(ctx, storyID, model.SectionText(i), fmt.Sprintf("Writing section %d...", i+1)); err != nil {
				return c.fail(ctx, storyID, fmt.Sprintf("section %d: %v", i, err))
			}
		}
		outcome, err := c.runSection(ctx, story, sections[i], len(sections), voiceID, priorText, prevImage)
		if err != nil {
			return c.fail(ctx, storyID, fmt.Sprintf("section %d: %v", i, err))
		}
		priorText = append(priorText, outcome.text)
		prevImage = outcome.image
	}

	return c.completeStory(ctx, storyID)
}

// completeStory writes the terminal complete status. If another writer (the
// sweeper, a manual retriage) moved the story out of its section stages in
// the meantime, the completion write is skipped.
func (c *Controller) completeStory(ctx context.Context, storyID string) error {
	current, err := c.stories.Get(ctx, storyID)
	if err != nil {
		return c.fail(ctx, storyID, fmt.Sprintf("complete: read failed: %v", err))
	}
	if !current.Status.InSection() {
		log.Printf("story %s is %s, skipping completion write", storyID, current.Status)
		return nil
	}

	err = c.stories.Update(ctx, storyID, store.Fields{
		store.FieldStatus: model.Complete(),
		store.FieldError:  "",
	})
	if err != nil {
		return c.fail(ctx, storyID, fmt.Sprintf("complete: save failed: %v", err))
	}

	if c.hub != nil {
		c.hub.BroadcastComplete(storyID, current.Title)
	}
	log.Printf("story %s completed", storyID)
	return nil
}

// checkpoint durably commits a stage transition before any work of that
// stage starts
func (c *Controller) checkpoint(ctx context.Context, storyID string, status model.Status, step string) error {
	err := c.stories.Update(ctx, storyID, store.Fields{store.FieldStatus: status})
	if err != nil {
		return fmt.Errorf("checkpoint %s failed: %w", status, err)
	}
	c.notifyProgress(storyID, status, step)
	return nil
}

// fail writes the terminal error status with a stage-qualified message.
// If that write itself fails the story is left at its last committed
// checkpoint; there is no automatic recovery.
func (c *Controller) fail(ctx context.Context, storyID, message string) error {
	err := c.stories.Update(ctx, storyID, store.Fields{
		store.FieldStatus: model.Errored(),
		store.FieldError:  message,
	})
	if err != nil {
		log.Printf("story %s: failed to record error %q: %v", storyID, message, err)
	}
	if c.hub != nil {
		c.hub.BroadcastError(storyID, "PIPELINE_FAILED", message)
	}
	return fmt.Errorf("story %s: %s", storyID, message)
}

func (c *Controller) notifyProgress(storyID string, status model.Status, step string) {
	if c.hub != nil {
		c.hub.BroadcastProgress(storyID, status, step)
	}
}
