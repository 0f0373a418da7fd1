// Package captions implements the Captions ingestor variant (spec §4.3):
// parses SRT/VTT subtitle files into SpeechTurn records with word timings
// when present, emitting one Speech segment per turn.
package captions

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rivergate/mediareef/internal/domain/content"
	"github.com/rivergate/mediareef/internal/ingest/common"
	"github.com/rivergate/mediareef/internal/platform/otelx"
	errs "github.com/rivergate/mediareef/internal/pkg/errors"
)

const IngestorID = "captions"

// cue is one parsed subtitle block before it is turned into domain types.
type cue struct {
	t0, t1 int64 // milliseconds
	text   string
	words  []content.WordTiming
}

// Ingestor parses .srt/.vtt files into Speech segments and SpeechTurns.
type Ingestor struct {
	NewID func() uuid.UUID
	Clock func() time.Time
}

func New() *Ingestor {
	return &Ingestor{NewID: uuid.New, Clock: time.Now}
}

func (ig *Ingestor) Ingest(ctx context.Context, path string) (result *common.Result, err error) {
	docIDForSpan := ig.NewID()
	ctx, span := otelx.StartIngest(ctx, IngestorID, docIDForSpan.String())
	defer func() { otelx.End(span, &err) }()

	sha, err := common.HashFile(path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &errs.IngestorError{Path: path, Reason: "read file", Err: err}
	}

	started := ig.Clock()
	docID := docIDForSpan
	doc, err := content.NewDocument(docID, path, sha, content.KindCaptions, mimeFor(path), nil, started)
	if err != nil {
		return nil, err
	}

	var cues []cue
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".vtt" {
		cues, err = parseVTT(string(raw))
	} else {
		cues, err = parseSRT(string(raw))
	}
	if err != nil {
		return nil, &errs.IngestorError{Path: path, Reason: "parse captions", Err: err}
	}

	res := &common.Result{
		Document:   doc,
		Provenance: map[uuid.UUID]content.Provenance{},
	}

	for _, c := range cues {
		tr := content.TimeRange{T0: c.t0, T1: c.t1}
		seg, err := content.NewSegment(ig.NewID(), docID, content.SegmentSpeech, &tr, nil, 1.0, nil)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped cue: "+err.Error())
			continue
		}

		turn, err := content.NewSpeechTurn(ig.NewID(), seg.ID, "", "captions_ingest", tr, c.text, 1.0, c.words)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped cue: "+err.Error())
			continue
		}

		blk, err := content.NewBlock(ig.NewID(), seg.ID, content.RoleSpeech, c.text, nil, &tr, nil, seg.Time, seg.Bbox)
		if err != nil {
			res.Warnings = append(res.Warnings, "dropped cue block: "+err.Error())
			continue
		}

		res.Segments = append(res.Segments, seg)
		res.SpeechTurns = append(res.SpeechTurns, turn)
		res.Blocks = append(res.Blocks, blk)
		res.Provenance[blk.ID] = common.SeedProvenance(blk.ID, IngestorID, path, sha)
	}

	return res, nil
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".vtt":
		return "text/vtt"
	default:
		return "application/x-subrip"
	}
}

var srtTimecode = regexp.MustCompile(`(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

func parseSRT(raw string) ([]cue, error) {
	var cues []cue
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		if _, err := strconv.Atoi(line); err == nil {
			i++ // skip the numeric index line
			if i >= len(lines) {
				break
			}
			line = strings.TrimSpace(lines[i])
		}
		m := srtTimecode.FindStringSubmatch(line)
		if m == nil {
			i++
			continue
		}
		t0 := timecodeMs(m[1:5])
		t1 := timecodeMs(m[5:9])
		i++

		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, strings.TrimSpace(lines[i]))
			i++
		}
		text, words := stripInlineTimestamps(strings.Join(textLines, "\n"), t0, t1)
		cues = append(cues, cue{t0: t0, t1: t1, text: text, words: words})
	}
	return cues, nil
}

func parseVTT(raw string) ([]cue, error) {
	var cues []cue
	body := strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(body, "\n")

	i := 0
	// Skip the WEBVTT header block up to the first blank line.
	if i < len(lines) && strings.HasPrefix(strings.TrimSpace(lines[i]), "WEBVTT") {
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			i++
		}
	}

	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			i++
			continue
		}
		m := srtTimecode.FindStringSubmatch(line)
		if m == nil {
			// could be a cue identifier line preceding the timestamp line
			if i+1 < len(lines) {
				if m2 := srtTimecode.FindStringSubmatch(strings.TrimSpace(lines[i+1])); m2 != nil {
					i++
					m = m2
					line = strings.TrimSpace(lines[i])
				}
			}
			if m == nil {
				i++
				continue
			}
		}
		t0 := timecodeMs(m[1:5])
		t1 := timecodeMs(m[5:9])
		i++

		var textLines []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			textLines = append(textLines, strings.TrimSpace(lines[i]))
			i++
		}
		text, words := stripInlineTimestamps(strings.Join(textLines, "\n"), t0, t1)
		cues = append(cues, cue{t0: t0, t1: t1, text: text, words: words})
	}
	return cues, nil
}

func timecodeMs(groups []string) int64 {
	h, _ := strconv.ParseInt(groups[0], 10, 64)
	m, _ := strconv.ParseInt(groups[1], 10, 64)
	s, _ := strconv.ParseInt(groups[2], 10, 64)
	ms, _ := strconv.ParseInt(groups[3], 10, 64)
	return ((h*60+m)*60+s)*1000 + ms
}

var inlineTimestamp = regexp.MustCompile(`<(\d{2}):(\d{2}):(\d{2})[,.](\d{3})>`)

// stripInlineTimestamps extracts WebVTT karaoke-style <hh:mm:ss.mmm> word
// markers and returns the plain text plus derived word timings. Each marker
// gives the start time of the word that follows it; the first word (before
// any marker) starts at cueStart, and the final word ends at cueEnd. If no
// markers are present, words is nil and the turn carries no word-level
// timing.
func stripInlineTimestamps(text string, cueStart, cueEnd int64) (string, []content.WordTiming) {
	matches := inlineTimestamp.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(text), nil
	}

	type span struct {
		word  string
		start int64
	}
	var spans []span
	idx := 0
	start := cueStart
	for _, m := range matches {
		word := strings.TrimSpace(text[idx:m[0]])
		if word != "" {
			spans = append(spans, span{word: word, start: start})
		}
		start = timecodeMsFromIndices(text, m)
		idx = m[1]
	}
	if tail := strings.TrimSpace(text[idx:]); tail != "" {
		spans = append(spans, span{word: tail, start: start})
	}

	var plain strings.Builder
	var words []content.WordTiming
	for i, sp := range spans {
		if i > 0 {
			plain.WriteByte(' ')
		}
		plain.WriteString(sp.word)
		end := cueEnd
		if i+1 < len(spans) {
			end = spans[i+1].start
		}
		if end < sp.start {
			end = sp.start
		}
		words = append(words, content.WordTiming{Word: sp.word, Time: content.TimeRange{T0: sp.start, T1: end}, Confidence: 1.0})
	}
	return plain.String(), words
}

func timecodeMsFromIndices(text string, m []int) int64 {
	groups := []string{text[m[2]:m[3]], text[m[4]:m[5]], text[m[6]:m[7]], text[m[8]:m[9]]}
	return timecodeMs(groups)
}
