package model

import "fmt"

// Status is the pipeline position of a story, persisted as a tagged value.
// Section carries the section index and is meaningful only for the three
// section stages. State is never recovered by parsing the display string.
type Status struct {
	Stage   Stage `json:"stage"`
	Section int   `json:"section"`
}

func Queued() Status   { return Status{Stage: StageQueued} }
func Planning() Status { return Status{Stage: StagePlanning} }
func Complete() Status { return Status{Stage: StageComplete} }
func Errored() Status  { return Status{Stage: StageError} }

func SectionText(i int) Status  { return Status{Stage: StageSectionText, Section: i} }
func SectionImage(i int) Status { return Status{Stage: StageSectionImage, Section: i} }
func SectionAudio(i int) Status { return Status{Stage: StageSectionAudio, Section: i} }

// Terminal reports whether no further pipeline writes may follow.
func (s Status) Terminal() bool {
	return s.Stage == StageComplete || s.Stage == StageError
}

// InSection reports whether the status is one of the per-section stages.
func (s Status) InSection() bool {
	switch s.Stage {
	case StageSectionText, StageSectionImage, StageSectionAudio:
		return true
	}
	return false
}

// Before reports whether s orders strictly before other in the pipeline's
// forward progression. Terminal stages order after every non-terminal one.
func (s Status) Before(other Status) bool {
	return s.rank() < other.rank()
}

func (s Status) rank() int {
	switch s.Stage {
	case StageQueued:
		return 0
	case StagePlanning:
		return 1
	case StageSectionText:
		return 2 + s.Section*3
	case StageSectionImage:
		return 3 + s.Section*3
	case StageSectionAudio:
		return 4 + s.Section*3
	}
	// complete and error sort last
	return 1 << 30
}

// String renders a human-readable form such as "section_text_2".
// Display only.
func (s Status) String() string {
	if s.InSection() {
		return fmt.Sprintf("%s_%d", s.Stage, s.Section)
	}
	return string(s.Stage)
}
