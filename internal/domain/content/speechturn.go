package content

import (
	"github.com/google/uuid"

	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

// UnknownSpeaker is the explicit sentinel used whenever diarization did not
// attribute a turn to a speaker. The system always stores this string
// rather than omitting speaker_id (see DESIGN.md Open Question #1).
const UnknownSpeaker = "unknown"

// WordTiming is one entry of a SpeechTurn's ordered word-level timing.
type WordTiming struct {
	Word       string
	Time       TimeRange
	Confidence float64
}

// SpeechTurn is attached to a Speech segment.
type SpeechTurn struct {
	ID          uuid.UUID
	SegmentID   uuid.UUID
	SpeakerID   string // opaque; UnknownSpeaker if diarization absent
	Provider    string
	Time        TimeRange
	Text        string
	Confidence  float64
	WordTimings []WordTiming
}

// NewSpeechTurn validates and constructs a SpeechTurn. A zero-duration turn
// (t0 == t1) is accepted only when text is non-empty (spec §8 boundary
// behavior).
func NewSpeechTurn(id, segmentID uuid.UUID, speakerID, provider string, tr TimeRange, text string, confidence float64, words []WordTiming) (*SpeechTurn, error) {
	if id == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "id", Reason: "must not be nil"}
	}
	if segmentID == uuid.Nil {
		return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "segment_id", Reason: "must not be nil"}
	}
	if !tr.valid() {
		return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "t0/t1", Reason: "t0 must be <= t1"}
	}
	if tr.T0 == tr.T1 && text == "" {
		return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "t0/t1", Reason: "zero-duration turn requires non-empty text"}
	}
	if speakerID == "" {
		speakerID = UnknownSpeaker
	}
	for i, w := range words {
		if !w.Time.valid() {
			return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "word_timings", Reason: "word interval invalid"}
		}
		if !tr.Contains(w.Time) {
			return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "word_timings", Reason: "word interval must lie inside turn interval"}
		}
		if i > 0 && words[i-1].Time.T1 > w.Time.T0 {
			return nil, &errs.InvalidEntity{Entity: "SpeechTurn", Field: "word_timings", Reason: "word timings must be ordered and non-overlapping"}
		}
	}
	return &SpeechTurn{
		ID:          id,
		SegmentID:   segmentID,
		SpeakerID:   speakerID,
		Provider:    provider,
		Time:        tr,
		Text:        text,
		Confidence:  confidence,
		WordTimings: words,
	}, nil
}

// NonOverlapping reports whether turns within one segment are pairwise
// non-overlapping, as required by §3. Turns must already be sorted by T0.
func NonOverlapping(turns []*SpeechTurn) bool {
	for i := 1; i < len(turns); i++ {
		if turns[i-1].Time.T1 > turns[i].Time.T0 {
			return false
		}
	}
	return true
}
