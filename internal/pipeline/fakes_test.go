package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/storyloom/api/internal/client"
	"github.com/storyloom/api/internal/model"
	"github.com/storyloom/api/internal/store"
)

// fakeStore is an in-memory StoryStore that records every partial-field
// update in order, so tests can assert on the exact write sequence.
type fakeStore struct {
	mu          sync.Mutex
	stories     map[string]*model.Story
	updates     []store.Fields
	failUpdates bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{stories: make(map[string]*model.Story)}
}

func (f *fakeStore) Create(ctx context.Context, story *model.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stories[story.ID] = copyStory(story)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (*model.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	story, ok := f.stories[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyStory(story), nil
}

func (f *fakeStore) Update(ctx context.Context, id string, fields store.Fields) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdates {
		return fmt.Errorf("store unavailable")
	}
	story, ok := f.stories[id]
	if !ok {
		return store.ErrNotFound
	}
	for name, value := range fields {
		switch name {
		case store.FieldStatus:
			story.Status = value.(model.Status)
		case store.FieldTitle:
			story.Title = value.(string)
		case store.FieldSections:
			story.Sections = copySections(value.([]model.Section))
		case store.FieldError:
			if msg := value.(string); msg == "" {
				story.Error = nil
			} else {
				story.Error = &msg
			}
		default:
			return fmt.Errorf("unexpected field %s", name)
		}
	}
	story.UpdatedAt = time.Now()
	f.updates = append(f.updates, copyFields(fields))
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.stories, id)
	return nil
}

func (f *fakeStore) ActiveIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, story := range f.stories {
		if !story.Status.Terminal() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// statusWrites returns every status value committed through Update, in order
func (f *fakeStore) statusWrites() []model.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	var statuses []model.Status
	for _, fields := range f.updates {
		if v, ok := fields[store.FieldStatus]; ok {
			statuses = append(statuses, v.(model.Status))
		}
	}
	return statuses
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// backdate shifts a story's updatedAt into the past (for sweeper tests)
func (f *fakeStore) backdate(id string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if story, ok := f.stories[id]; ok {
		story.UpdatedAt = time.Now().Add(-d)
	}
}

func copyStory(s *model.Story) *model.Story {
	out := *s
	out.Sections = copySections(s.Sections)
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	return &out
}

func copySections(sections []model.Section) []model.Section {
	out := make([]model.Section, len(sections))
	copy(out, sections)
	return out
}

func copyFields(fields store.Fields) store.Fields {
	out := make(store.Fields, len(fields))
	for k, v := range fields {
		if sections, ok := v.([]model.Section); ok {
			out[k] = copySections(sections)
			continue
		}
		out[k] = v
	}
	return out
}

// fakeBlobs is an in-memory StorageClient
type fakeBlobs struct {
	mu      sync.Mutex
	uploads map[string][]byte
	deleted []string
	failAll bool
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{uploads: make(map[string][]byte)}
}

func (f *fakeBlobs) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return "", fmt.Errorf("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.uploads[key] = data
	return "https://cdn.test/" + key, nil
}

func (f *fakeBlobs) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobs) GetSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	return "https://cdn.test/signed/" + key, nil
}

func (f *fakeBlobs) GetPublicURL(key string) string {
	return "https://cdn.test/" + key
}

// chatFunc adapts a function to client.ChatCompleter
type chatFunc func(ctx context.Context, system, user string) (string, error)

func (fn chatFunc) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	return fn(ctx, system, user)
}

// imageFunc adapts a function to client.ImageGenerator
type imageFunc func(ctx context.Context, req *client.ImageRequest) ([]byte, error)

func (fn imageFunc) GenerateImage(ctx context.Context, req *client.ImageRequest) ([]byte, error) {
	return fn(ctx, req)
}

// speechFunc adapts a function to client.SpeechSynthesizer
type speechFunc func(ctx context.Context, text, voiceID string) ([]byte, error)

func (fn speechFunc) SynthesizeSpeech(ctx context.Context, text, voiceID string) ([]byte, error) {
	return fn(ctx, text, voiceID)
}
