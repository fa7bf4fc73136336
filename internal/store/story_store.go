package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/storyloom/api/internal/model"
)

// ErrNotFound is returned when no story exists for the given id
var ErrNotFound = errors.New("story not found")

// Hash field names of the story document
const (
	FieldOwnerID      = "ownerId"
	FieldTopic        = "topic"
	FieldHero         = "hero"
	FieldLengthClass  = "lengthClass"
	FieldVoiceID      = "voiceId"
	FieldReferenceURL = "referenceImageUrl"
	FieldStatus       = "status"
	FieldError        = "errorMessage"
	FieldTitle        = "title"
	FieldSections     = "sections"
	FieldCreatedAt    = "createdAt"
	FieldUpdatedAt    = "updatedAt"
)

// Fields is a partial-field update. Supported value types: string, *string,
// model.Status, model.LengthClass, []model.Section, time.Time.
type Fields map[string]interface{}

// StoryStore is the durable progress store for stories. Update applies a
// partial-field write with per-field last-write-wins semantics and always
// bumps updatedAt; the whole document is never replaced.
type StoryStore interface {
	Create(ctx context.Context, story *model.Story) error
	Get(ctx context.Context, id string) (*model.Story, error)
	Update(ctx context.Context, id string, fields Fields) error
	Delete(ctx context.Context, id string) error
	ActiveIDs(ctx context.Context) ([]string, error)
}

// RedisStoryStore keeps each story as a Redis hash so that field-level
// writes are a single atomic HSET. A side set tracks stories in
// non-terminal status for the stale-job sweep.
type RedisStoryStore struct {
	redis *redis.Client
}

func NewRedisStoryStore(redisClient *redis.Client) *RedisStoryStore {
	return &RedisStoryStore{redis: redisClient}
}

const activeSetKey = "stories:active"

func storyKey(id string) string {
	return fmt.Sprintf("story:%s", id)
}

// Create persists a new story document and registers it in the active set
func (s *RedisStoryStore) Create(ctx context.Context, story *model.Story) error {
	fields := Fields{
		FieldOwnerID:     story.OwnerID,
		FieldTopic:       story.Topic,
		FieldHero:        story.Hero,
		FieldLengthClass: story.LengthClass,
		FieldVoiceID:     story.VoiceID,
		FieldStatus:      story.Status,
		FieldSections:    story.Sections,
		FieldCreatedAt:   story.CreatedAt,
		FieldUpdatedAt:   story.UpdatedAt,
	}
	if story.ReferenceImageURL != "" {
		fields[FieldReferenceURL] = story.ReferenceImageURL
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, storyKey(story.ID), encoded)
	pipe.SAdd(ctx, activeSetKey, story.ID)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save story: %w", err)
	}
	return nil
}

// Get reads the full story document
func (s *RedisStoryStore) Get(ctx context.Context, id string) (*model.Story, error) {
	values, err := s.redis.HGetAll(ctx, storyKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read story: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	return decodeStory(id, values)
}

// Update applies a partial-field write. updatedAt is always bumped; when the
// update carries a terminal status, the story leaves the active set.
func (s *RedisStoryStore) Update(ctx context.Context, id string, fields Fields) error {
	if len(fields) == 0 {
		return nil
	}

	merged := make(Fields, len(fields)+1)
	for k, v := range fields {
		merged[k] = v
	}
	merged[FieldUpdatedAt] = time.Now().UTC()

	encoded, err := encodeFields(merged)
	if err != nil {
		return err
	}

	terminal := false
	if v, ok := fields[FieldStatus]; ok {
		if st, ok := v.(model.Status); ok && st.Terminal() {
			terminal = true
		}
	}

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, storyKey(id), encoded)
	if terminal {
		pipe.SRem(ctx, activeSetKey, id)
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update story: %w", err)
	}
	return nil
}

// Delete removes the story document
func (s *RedisStoryStore) Delete(ctx context.Context, id string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, storyKey(id))
	pipe.SRem(ctx, activeSetKey, id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	return nil
}

// ActiveIDs lists stories that have not reached a terminal status
func (s *RedisStoryStore) ActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := s.redis.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active stories: %w", err)
	}
	return ids, nil
}

// encodeFields maps typed field values onto hash strings. Status and the
// sections array are stored as JSON, times as RFC3339.
func encodeFields(fields Fields) (map[string]string, error) {
	encoded := make(map[string]string, len(fields))
	for name, value := range fields {
		switch v := value.(type) {
		case string:
			encoded[name] = v
		case *string:
			if v == nil {
				encoded[name] = ""
			} else {
				encoded[name] = *v
			}
		case model.LengthClass:
			encoded[name] = string(v)
		case model.Status:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode field %s: %w", name, err)
			}
			encoded[name] = string(data)
		case []model.Section:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to encode field %s: %w", name, err)
			}
			encoded[name] = string(data)
		case time.Time:
			encoded[name] = v.Format(time.RFC3339Nano)
		default:
			return nil, fmt.Errorf("unsupported field type for %s: %T", name, value)
		}
	}
	return encoded, nil
}

func decodeStory(id string, values map[string]string) (*model.Story, error) {
	story := &model.Story{
		ID:                id,
		OwnerID:           values[FieldOwnerID],
		Topic:             values[FieldTopic],
		Hero:              values[FieldHero],
		LengthClass:       model.LengthClass(values[FieldLengthClass]),
		VoiceID:           values[FieldVoiceID],
		ReferenceImageURL: values[FieldReferenceURL],
		Title:             values[FieldTitle],
		Sections:          []model.Section{},
	}

	if raw := values[FieldStatus]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &story.Status); err != nil {
			return nil, fmt.Errorf("corrupt status field: %w", err)
		}
	}

	if raw := values[FieldSections]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &story.Sections); err != nil {
			return nil, fmt.Errorf("corrupt sections field: %w", err)
		}
	}

	if msg := values[FieldError]; msg != "" {
		story.Error = &msg
	}

	var err error
	if raw := values[FieldCreatedAt]; raw != "" {
		if story.CreatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("corrupt createdAt field: %w", err)
		}
	}
	if raw := values[FieldUpdatedAt]; raw != "" {
		if story.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, fmt.Errorf("corrupt updatedAt field: %w", err)
		}
	}

	return story, nil
}
