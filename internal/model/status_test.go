package model

import "testing"

func TestStatusOrdering(t *testing.T) {
	// The full forward progression of a three-section story.
	sequence := []Status{
		Queued(),
		Planning(),
		SectionText(0), SectionImage(0), SectionAudio(0),
		SectionText(1), SectionImage(1), SectionAudio(1),
		SectionText(2), SectionImage(2), SectionAudio(2),
		Complete(),
	}
	for i := 0; i < len(sequence)-1; i++ {
		if !sequence[i].Before(sequence[i+1]) {
			t.Errorf("%s should order before %s", sequence[i], sequence[i+1])
		}
		if sequence[i+1].Before(sequence[i]) {
			t.Errorf("%s should not order before %s", sequence[i+1], sequence[i])
		}
	}

	if SectionText(0).Before(SectionText(0)) {
		t.Error("a status must not order before itself")
	}
	if !SectionAudio(0).Before(SectionText(1)) {
		t.Error("audio of section 0 should order before text of section 1")
	}
	if !SectionText(2).Before(Errored()) {
		t.Error("error should order after every section stage")
	}
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{Complete(), Errored()} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{Queued(), Planning(), SectionText(0), SectionImage(1), SectionAudio(2)} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestStatusInSection(t *testing.T) {
	for _, s := range []Status{SectionText(0), SectionImage(1), SectionAudio(2)} {
		if !s.InSection() {
			t.Errorf("%s should be in a section stage", s)
		}
	}
	for _, s := range []Status{Queued(), Planning(), Complete(), Errored()} {
		if s.InSection() {
			t.Errorf("%s should not be in a section stage", s)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{Queued(), "queued"},
		{Planning(), "planning"},
		{SectionText(2), "section_text_2"},
		{SectionImage(0), "section_image_0"},
		{SectionAudio(4), "section_audio_4"},
		{Complete(), "complete"},
		{Errored(), "error"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestLengthClassSectionCount(t *testing.T) {
	tests := []struct {
		length LengthClass
		want   int
	}{
		{LengthShort, 3},
		{LengthMedium, 5},
		{LengthLong, 7},
		{LengthClass("epic"), 0},
		{LengthClass(""), 0},
	}
	for _, tt := range tests {
		if got := tt.length.SectionCount(); got != tt.want {
			t.Errorf("SectionCount(%q) = %d, want %d", tt.length, got, tt.want)
		}
		if tt.length.Valid() != (tt.want > 0) {
			t.Errorf("Valid(%q) = %v", tt.length, tt.length.Valid())
		}
	}
}
