package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/store"
)

// sectionOutcome carries what later sections need from an earlier one: the
// text feeds the continuity context, the image conditions the next
// illustration.
type sectionOutcome struct {
	text  string
	image []byte
}

const sectionSystemPrompt = `You are a children's story writer.
You write one section of a story at a time, following a planning brief,
continuing smoothly from the sections written so far.
Respond with the section text only, no headings and no commentary.`

// runSection produces text, illustration and narration for one section and
// commits them with a consolidated write. Text goes first; image and audio
// then run as a two-way fan-out. The asset policy is halt-on-any-failure:
// a story is only ever complete when every section is fully populated, so a
// single failed asset ends the run.
func (c *Controller) runSection(
	ctx context.Context,
	story *model.Story,
	section model.Section,
	total int,
	voiceID string,
	priorText []string,
	prevImage []byte,
) (*sectionOutcome, error) {
	i := section.Index

	text, err := c.generateSectionText(ctx, story, section, total, priorText)
	if err != nil {
		return nil, fmt.Errorf("text: %v", err)
	}

	// The text is committed together with the image checkpoint, before any
	// asset call is issued: a later asset failure must not lose it. The
	// audio checkpoint follows immediately so the persisted status sequence
	// stays strictly forward even though the two calls run concurrently.
	if err := c.commitSectionText(ctx, story.ID, i, text); err != nil {
		return nil, err
	}
	if err := c.checkpoint(ctx, story.ID, model.SectionAudio(i), fmt.Sprintf("Narrating section %d...", i+1)); err != nil {
		return nil, err
	}

	var imageBytes []byte
	var imageURL, audioURL string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := c.images.GenerateImage(gctx, &client.ImageRequest{
			Prompt:            c.imagePrompt(story, section, text),
			ReferenceImageURL: story.ReferenceImageURL,
			PreviousImage:     prevImage,
		})
		if err != nil {
			return fmt.Errorf("image: %v", err)
		}
		if len(raw) == 0 {
			return fmt.Errorf("image: empty response")
		}
		url, err := c.blobs.Upload(gctx, client.SectionImageKey(story.ID, i), bytes.NewReader(raw), "image/png")
		if err != nil {
			return fmt.Errorf("image upload: %v", err)
		}
		imageBytes = raw
		imageURL = url
		return nil
	})
	g.Go(func() error {
		raw, err := c.speech.SynthesizeSpeech(gctx, text, voiceID)
		if err != nil {
			return fmt.Errorf("audio: %v", err)
		}
		if len(raw) == 0 {
			return fmt.Errorf("audio: empty response")
		}
		url, err := c.blobs.Upload(gctx, client.SectionAudioKey(story.ID, i), bytes.NewReader(raw), "audio/mpeg")
		if err != nil {
			return fmt.Errorf("audio upload: %v", err)
		}
		audioURL = url
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := c.writeSection(ctx, story.ID, i, text, imageURL, audioURL); err != nil {
		return nil, err
	}

	return &sectionOutcome{text: text, image: imageBytes}, nil
}

func (c *Controller) generateSectionText(ctx context.Context, story *model.Story, section model.Section, total int, priorText []string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write section %d of %d of a children's story.\n", section.Index+1, total)
	fmt.Fprintf(&sb, "Protagonist: %s\n", story.Hero)
	fmt.Fprintf(&sb, "Topic: %s\n", topicOrDefault(story.Topic))
	fmt.Fprintf(&sb, "This section's brief: %s\n", section.Brief)
	if len(priorText) > 0 {
		sb.WriteString("\nThe story so far:\n")
		sb.WriteString(strings.Join(priorText, "\n\n"))
		sb.WriteString("\n")
	}
	sb.WriteString("\nWrite 4-6 sentences. Simple, warm language a young child follows easily.")
	if section.Index == total-1 {
		sb.WriteString("\nThis is the final section: bring the story to a satisfying close.")
	}

	response, err := c.llm.ChatCompletion(ctx, sectionSystemPrompt, sb.String())
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	text := strings.TrimSpace(response)
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

func (c *Controller) imagePrompt(story *model.Story, section model.Section, text string) string {
	scene := section.Brief
	if scene == "" {
		scene = text
	}
	return fmt.Sprintf("Colorful children's book illustration. Protagonist: %s. Scene: %s", story.Hero, scene)
}

// commitSectionText durably stores the section's text and advances into the
// image stage in one atomic update
func (c *Controller) commitSectionText(ctx context.Context, storyID string, i int, text string) error {
	current, err := c.stories.Get(ctx, storyID)
	if err != nil {
		return fmt.Errorf("text: save: read failed: %v", err)
	}
	if i < 0 || i >= len(current.Sections) {
		return fmt.Errorf("text: save: section index %d out of range (%d sections)", i, len(current.Sections))
	}

	current.Sections[i].Text = strings.TrimSpace(text)
	status := model.SectionImage(i)
	err = c.stories.Update(ctx, storyID, store.Fields{
		store.FieldSections: current.Sections,
		store.FieldStatus:   status,
	})
	if err != nil {
		return fmt.Errorf("text: save: write failed: %v", err)
	}
	c.notifyProgress(storyID, status, fmt.Sprintf("Illustrating section %d...", i+1))
	return nil
}

// writeSection re-reads the story and replaces the sections array with the
// section at index i filled in (read-modify-write, not a blind overwrite).
// Safe because the status guard makes this run the story's only writer;
// under multiple writers the whole-array write would race.
func (c *Controller) writeSection(ctx context.Context, storyID string, i int, text, imageURL, audioURL string) error {
	current, err := c.stories.Get(ctx, storyID)
	if err != nil {
		return fmt.Errorf("save: read failed: %v", err)
	}

	// Structurally impossible after plan initialization; if it happens the
	// document was corrupted externally.
	if i < 0 || i >= len(current.Sections) {
		return fmt.Errorf("save: section index %d out of range (%d sections)", i, len(current.Sections))
	}

	current.Sections[i].Text = strings.TrimSpace(text)
	current.Sections[i].ImageURL = strings.TrimSpace(imageURL)
	current.Sections[i].AudioURL = strings.TrimSpace(audioURL)

	err = c.stories.Update(ctx, storyID, store.Fields{
		store.FieldSections: current.Sections,
	})
	if err != nil {
		return fmt.Errorf("save: write failed: %v", err)
	}
	return nil
}
