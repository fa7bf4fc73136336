package store

import (
	"strings"
	"testing"
	"time"

	"github.com/storyloom/api/internal/model"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589793000, time.UTC)
	sections := []model.Section{
		{Index: 0, Brief: "the fox finds a kite", Text: "Once upon a time...", ImageURL: "https://cdn/0.png", AudioURL: "https://cdn/0.mp3"},
		{Index: 1, Brief: "the kite lifts off"},
	}
	errMsg := "section 1: image: render service down"

	fields := Fields{
		FieldOwnerID:     "owner-1",
		FieldTopic:       "kites",
		FieldHero:        "Milo the fox",
		FieldLengthClass: model.LengthMedium,
		FieldVoiceID:     "voice-7",
		FieldStatus:      model.SectionImage(1),
		FieldError:       &errMsg,
		FieldTitle:       "Milo and the Moon Kite",
		FieldSections:    sections,
		FieldCreatedAt:   created,
		FieldUpdatedAt:   created.Add(time.Minute),
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		t.Fatalf("encodeFields: %v", err)
	}
	story, err := decodeStory("story-1", encoded)
	if err != nil {
		t.Fatalf("decodeStory: %v", err)
	}

	if story.ID != "story-1" || story.OwnerID != "owner-1" || story.Hero != "Milo the fox" {
		t.Errorf("identity fields: %+v", story)
	}
	if story.LengthClass != model.LengthMedium {
		t.Errorf("lengthClass = %q", story.LengthClass)
	}
	if story.Status != model.SectionImage(1) {
		t.Errorf("status = %s, want section_image_1", story.Status)
	}
	if story.Error == nil || *story.Error != errMsg {
		t.Errorf("errorMessage = %v, want %q", story.Error, errMsg)
	}
	if len(story.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(story.Sections))
	}
	if story.Sections[0] != sections[0] || story.Sections[1] != sections[1] {
		t.Errorf("sections did not round-trip: %+v", story.Sections)
	}
	if !story.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %s, want %s", story.CreatedAt, created)
	}
	if !story.UpdatedAt.Equal(created.Add(time.Minute)) {
		t.Errorf("updatedAt = %s", story.UpdatedAt)
	}
}

func TestEncodeFieldsNilErrorClearsMessage(t *testing.T) {
	encoded, err := encodeFields(Fields{FieldError: (*string)(nil)})
	if err != nil {
		t.Fatalf("encodeFields: %v", err)
	}
	if encoded[FieldError] != "" {
		t.Errorf("nil *string encoded as %q, want empty", encoded[FieldError])
	}

	story, err := decodeStory("story-1", encoded)
	if err != nil {
		t.Fatalf("decodeStory: %v", err)
	}
	if story.Error != nil {
		t.Errorf("errorMessage = %q, want nil", *story.Error)
	}
}

func TestEncodeFieldsRejectsUnsupportedType(t *testing.T) {
	_, err := encodeFields(Fields{FieldTitle: 42})
	if err == nil {
		t.Fatal("encodeFields accepted an int")
	}
	if !strings.Contains(err.Error(), "unsupported field type") {
		t.Errorf("error = %q", err)
	}
}

func TestDecodeStoryEmptyDocumentDefaults(t *testing.T) {
	story, err := decodeStory("story-1", map[string]string{})
	if err != nil {
		t.Fatalf("decodeStory: %v", err)
	}
	if story.Sections == nil {
		t.Error("sections should decode to an empty slice, not nil")
	}
	if story.Error != nil {
		t.Errorf("errorMessage = %v, want nil", story.Error)
	}
}

func TestDecodeStoryCorruptFields(t *testing.T) {
	if _, err := decodeStory("s", map[string]string{FieldStatus: "{not json"}); err == nil {
		t.Error("corrupt status accepted")
	}
	if _, err := decodeStory("s", map[string]string{FieldSections: "[broken"}); err == nil {
		t.Error("corrupt sections accepted")
	}
	if _, err := decodeStory("s", map[string]string{FieldCreatedAt: "yesterday"}); err == nil {
		t.Error("corrupt createdAt accepted")
	}
}
