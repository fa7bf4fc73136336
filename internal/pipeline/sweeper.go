package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/store"
)

// Sweeper marks stories stuck in a non-terminal status as failed once their
// last durable write is older than the staleness threshold. A stalled story
// is never re-driven: the queued guard makes partial re-runs impossible, so
// the only honest outcome is a loud error the owner can see.
type Sweeper struct {
	stories    store.StoryStore
	interval   time.Duration
	staleAfter time.Duration
}

func NewSweeper(stories store.StoryStore, interval, staleAfter time.Duration) *Sweeper {
	return &Sweeper{
		stories:    stories,
		interval:   interval,
		staleAfter: staleAfter,
	}
}

// Run sweeps on a fixed interval until the context is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				log.Printf("Sweep failed: %v", err)
			} else if n > 0 {
				log.Printf("Sweep marked %d stalled stories", n)
			}
		}
	}
}

// Sweep scans active stories once and returns how many it marked stalled
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.stories.ActiveIDs(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.staleAfter)
	marked := 0
	for _, id := range ids {
		story, err := s.stories.Get(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			log.Printf("Sweep: failed to read story %s: %v", id, err)
			continue
		}
		if story.Status.Terminal() || story.UpdatedAt.After(cutoff) {
			continue
		}

		msg := fmt.Sprintf("stalled at %s since %s", story.Status, story.UpdatedAt.Format(time.RFC3339))
		err = s.stories.Update(ctx, id, store.Fields{
			store.FieldStatus: model.Errored(),
			store.FieldError:  msg,
		})
		if err != nil {
			log.Printf("Sweep: failed to mark story %s: %v", id, err)
			continue
		}
		marked++
	}
	return marked, nil
}
