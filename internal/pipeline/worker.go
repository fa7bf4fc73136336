package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

// TaskTypeStory is the asynq task type that triggers one pipeline run
const TaskTypeStory = "story:generate"

// StoryTaskPayload is the trigger payload: the story was already persisted
// in status queued, so the id is all the worker needs.
type StoryTaskPayload struct {
	StoryID string `json:"storyId"`
}

// NewStoryTask builds the trigger task for a queued story
func NewStoryTask(storyID string) (*asynq.Task, error) {
	data, err := json.Marshal(StoryTaskPayload{StoryID: storyID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeStory, data), nil
}

// Worker adapts the Controller to asynq task delivery
type Worker struct {
	controller *Controller
}

func NewWorker(controller *Controller) *Worker {
	return &Worker{controller: controller}
}

// ProcessTask handles one story trigger. Task-level retries are disabled at
// enqueue time; re-delivered triggers are absorbed by the queued guard.
func (w *Worker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload StoryTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if payload.StoryID == "" {
		return fmt.Errorf("task payload has no story id")
	}

	log.Printf("Starting story pipeline: %s", payload.StoryID)
	if err := w.controller.Run(ctx, payload.StoryID); err != nil {
		log.Printf("Story pipeline failed: %v", err)
		return err
	}
	return nil
}
