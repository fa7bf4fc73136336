package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/pipeline"
	"github.com/storyloom/api/internal/store"
)

// TaskEnqueuer is the slice of asynq.Client the service needs; tests
// substitute a recorder.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// StoryService handles story intake and reads. Creation persists the story
// in status queued and fires exactly one pipeline trigger; everything after
// that is the pipeline's business.
type StoryService struct {
	stories store.StoryStore
	tasks   TaskEnqueuer
	blobs   client.StorageClient
	budget  time.Duration
}

func NewStoryService(stories store.StoryStore, tasks TaskEnqueuer, blobs client.StorageClient, budget time.Duration) *StoryService {
	return &StoryService{
		stories: stories,
		tasks:   tasks,
		blobs:   blobs,
		budget:  budget,
	}
}

// Create persists a new queued story and enqueues its trigger task
func (s *StoryService) Create(ctx context.Context, ownerID string, req *model.StoryCreateRequest) (*model.StoryCreateResponse, error) {
	now := time.Now().UTC()
	story := &model.Story{
		ID:                uuid.New().String(),
		OwnerID:           ownerID,
		Topic:             req.Topic,
		Hero:              req.Hero,
		LengthClass:       req.LengthClass,
		VoiceID:           req.VoiceID,
		ReferenceImageURL: req.ReferenceImageURL,
		Status:            model.Queued(),
		Sections:          []model.Section{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.stories.Create(ctx, story); err != nil {
		return nil, fmt.Errorf("failed to save story: %w", err)
	}

	task, err := pipeline.NewStoryTask(story.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// MaxRetry 0: a failed run halts in status error; re-delivery would be
	// absorbed by the queued guard anyway. The task timeout mirrors the
	// pipeline's wall-clock budget.
	_, err = s.tasks.Enqueue(task,
		asynq.Queue("stories"),
		asynq.MaxRetry(0),
		asynq.Timeout(s.budget),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.StoryCreateResponse{
		StoryID:   story.ID,
		Status:    story.Status,
		CreatedAt: story.CreatedAt,
	}, nil
}

// Get returns the full story document for its owner
func (s *StoryService) Get(ctx context.Context, ownerID, storyID string) (*model.Story, error) {
	story, err := s.stories.Get(ctx, storyID)
	if err != nil {
		return nil, err
	}
	if story.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return story, nil
}

// GetStatus returns the progress view of a story
func (s *StoryService) GetStatus(ctx context.Context, ownerID, storyID string) (*model.StoryStatusResponse, error) {
	story, err := s.Get(ctx, ownerID, storyID)
	if err != nil {
		return nil, err
	}

	return &model.StoryStatusResponse{
		StoryID:      story.ID,
		Status:       story.Status,
		Title:        story.Title,
		SectionCount: len(story.Sections),
		Error:        story.Error,
		CreatedAt:    story.CreatedAt,
		UpdatedAt:    story.UpdatedAt,
	}, nil
}

// Delete removes a story and its stored assets. Asset deletion is
// best-effort: a missing blob must not keep the document alive.
func (s *StoryService) Delete(ctx context.Context, ownerID, storyID string) (*model.StoryDeleteResponse, error) {
	story, err := s.Get(ctx, ownerID, storyID)
	if err != nil {
		return nil, err
	}

	if s.blobs != nil {
		for _, section := range story.Sections {
			if section.ImageURL != "" {
				_ = s.blobs.Delete(ctx, client.SectionImageKey(story.ID, section.Index))
			}
			if section.AudioURL != "" {
				_ = s.blobs.Delete(ctx, client.SectionAudioKey(story.ID, section.Index))
			}
		}
	}

	if err := s.stories.Delete(ctx, storyID); err != nil {
		return nil, err
	}

	return &model.StoryDeleteResponse{
		Success: true,
		StoryID: storyID,
	}, nil
}
