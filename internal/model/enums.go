package model

// Length classes for a story
type LengthClass string

const (
	LengthShort  LengthClass = "short"
	LengthMedium LengthClass = "medium"
	LengthLong   LengthClass = "long"
)

var ValidLengthClasses = []LengthClass{
	LengthShort, LengthMedium, LengthLong,
}

// SectionCount returns the number of sections a story of this length has.
// Returns 0 for an unknown length class.
func (l LengthClass) SectionCount() int {
	switch l {
	case LengthShort:
		return 3
	case LengthMedium:
		return 5
	case LengthLong:
		return 7
	}
	return 0
}

// Valid reports whether the length class is one of the known values.
func (l LengthClass) Valid() bool {
	return l.SectionCount() > 0
}

// Pipeline stages
type Stage string

const (
	StageQueued       Stage = "queued"
	StagePlanning     Stage = "planning"
	StageSectionText  Stage = "section_text"
	StageSectionImage Stage = "section_image"
	StageSectionAudio Stage = "section_audio"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)
