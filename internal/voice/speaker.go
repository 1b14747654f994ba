package voice

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// Synthesizer turns one utterance into PCM audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, utterance domain.Utterance) ([]byte, error)
}

// Player plays PCM audio, blocking until it finished or ctx is done.
type Player interface {
	Play(ctx context.Context, pcm []byte, volume float64) error
}

// Speaker speaks utterances sentence by sentence so playback of the first
// sentence overlaps synthesis of the next.
type Speaker struct {
	synth  Synthesizer
	player Player
}

var _ ports.SpeechEngine = (*Speaker)(nil)

func NewSpeaker(synth Synthesizer, player Player) *Speaker {
	return &Speaker{synth: synth, player: player}
}

func (s *Speaker) Speak(ctx context.Context, utterance domain.Utterance) error {
	sentences := splitSentences(utterance.Text)
	if len(sentences) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	clips := make(chan []byte, 1)

	g.Go(func() error {
		defer close(clips)
		for _, sentence := range sentences {
			part := utterance
			part.Text = sentence
			pcm, err := s.synth.Synthesize(ctx, part)
			if err != nil {
				return err
			}
			select {
			case clips <- pcm:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for pcm := range clips {
			if err := s.player.Play(ctx, pcm, utterance.Volume); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

// splitSentences breaks text after . ! or ? followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if sentence := strings.TrimSpace(string(runes[start : i+1])); sentence != "" {
			out = append(out, sentence)
		}
		start = i + 1
	}
	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		out = append(out, rest)
	}
	return out
}
