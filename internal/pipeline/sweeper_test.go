package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/storyloom/api/internal/model"
)

func TestSweepMarksStalledStories(t *testing.T) {
	stories := newFakeStore()
	ctx := context.Background()

	stale := &model.Story{ID: "stale", Status: model.SectionImage(2), UpdatedAt: time.Now()}
	fresh := &model.Story{ID: "fresh", Status: model.Planning(), UpdatedAt: time.Now()}
	done := &model.Story{ID: "done", Status: model.Complete(), UpdatedAt: time.Now()}
	for _, s := range []*model.Story{stale, fresh, done} {
		if err := stories.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	stories.backdate("stale", time.Hour)
	stories.backdate("done", time.Hour)

	sweeper := NewSweeper(stories, time.Minute, 15*time.Minute)
	n, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("Sweep marked %d, want 1", n)
	}

	got, _ := stories.Get(ctx, "stale")
	if got.Status != model.Errored() {
		t.Errorf("stale status = %s, want error", got.Status)
	}
	if got.Error == nil || !strings.Contains(*got.Error, "section_image_2") {
		t.Errorf("stale errorMessage = %v, want the stalled status named", got.Error)
	}

	got, _ = stories.Get(ctx, "fresh")
	if got.Status != model.Planning() {
		t.Errorf("fresh status = %s, want planning untouched", got.Status)
	}
	got, _ = stories.Get(ctx, "done")
	if got.Status != model.Complete() {
		t.Errorf("done status = %s, want complete untouched", got.Status)
	}
}

func TestSweepEmptyStoreIsNoop(t *testing.T) {
	stories := newFakeStore()
	sweeper := NewSweeper(stories, time.Minute, 15*time.Minute)
	n, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 0 {
		t.Errorf("Sweep marked %d, want 0", n)
	}
}
