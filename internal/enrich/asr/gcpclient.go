package asr

import (
	"context"
	"fmt"
	"strings"

	speechapi "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/protobuf/types/known/durationpb"
)

// realSpeechClient adapts *speechapi.Client to gcpSpeechClient, grounded
// directly on the teacher's TranscribeAudioBytes (LongRunningRecognize with
// speaker diarization, words grouped into per-speaker turns).
type realSpeechClient struct {
	client       *speechapi.Client
	languageCode string
}

// NewRealGCPClient dials the Speech-to-Text API using default application
// credentials, matching the teacher's NewSpeech construction pattern.
func NewRealGCPClient(ctx context.Context, languageCode string) (Backend, func() error, error) {
	if languageCode == "" {
		languageCode = "en-US"
	}
	client, err := speechapi.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("speech client: %w", err)
	}
	backend := NewGCPBackend(&realSpeechClient{client: client, languageCode: languageCode})
	return backend, client.Close, nil
}

func (c *realSpeechClient) Transcribe(ctx context.Context, audio []byte) ([]Turn, error) {
	req := &speechpb.LongRunningRecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			LanguageCode:               c.languageCode,
			EnableAutomaticPunctuation: true,
			EnableWordTimeOffsets:      true,
			DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
				EnableSpeakerDiarization: true,
				MinSpeakerCount:          1,
				MaxSpeakerCount:          6,
			},
		},
		Audio: &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	}

	op, err := c.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("speech LongRunningRecognize: %w", err)
	}
	resp, err := op.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("speech operation wait: %w", err)
	}
	return turnsFromResponse(resp), nil
}

type speechWord struct {
	text string
	s, e float64
	spk  string
	conf float64
}

func turnsFromResponse(resp *speechpb.LongRunningRecognizeResponse) []Turn {
	if resp == nil {
		return nil
	}

	var words []speechWord
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		alt := alts[0]
		for _, w := range alt.GetWords() {
			words = append(words, speechWord{
				text: w.GetWord(),
				s:    durSeconds(w.GetStartTime()),
				e:    durSeconds(w.GetEndTime()),
				spk:  speakerTag(w.GetSpeakerTag()),
				conf: float64(alt.GetConfidence()),
			})
		}
	}
	if len(words) == 0 {
		return nil
	}
	return groupBySpeaker(words)
}

func durSeconds(d *durationpb.Duration) float64 {
	if d == nil {
		return 0
	}
	return float64(d.GetSeconds()) + float64(d.GetNanos())/1e9
}

func speakerTag(tag int32) string {
	if tag <= 0 {
		return ""
	}
	return fmt.Sprintf("speaker_%d", tag)
}

func groupBySpeaker(words []speechWord) []Turn {
	turns := []Turn{}
	curSpk := words[0].spk
	curStart := words[0].s
	curEnd := words[0].e
	var buf strings.Builder
	var confSum float64
	var confN int
	var turnWords []Word

	flush := func() {
		txt := strings.TrimSpace(buf.String())
		if txt == "" {
			return
		}
		conf := 0.0
		if confN > 0 {
			conf = confSum / float64(confN)
		}
		turns = append(turns, Turn{
			SpeakerTag: curSpk,
			StartSec:   curStart,
			EndSec:     curEnd,
			Text:       txt,
			Confidence: conf,
			Words:      turnWords,
		})
		buf.Reset()
		confSum, confN = 0, 0
		turnWords = nil
	}

	for _, w := range words {
		if w.spk != curSpk && buf.Len() > 0 {
			flush()
			curSpk = w.spk
			curStart = w.s
		}
		if buf.Len() > 0 {
			buf.WriteString(" ")
		}
		buf.WriteString(w.text)
		if w.e > curEnd {
			curEnd = w.e
		}
		if w.conf > 0 {
			confSum += w.conf
			confN++
		}
		turnWords = append(turnWords, Word{Text: w.text, StartSec: w.s, EndSec: w.e, SpeakerTag: w.spk, Confidence: w.conf})
	}
	flush()
	return turns
}
