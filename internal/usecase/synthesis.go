package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// SynthesisConfig fixes the voice parameters of every utterance.
type SynthesisConfig struct {
	Language string
	Rate     float64
	Pitch    float64
	Volume   float64
}

// SynthesisController speaks one utterance at a time. A new utterance
// interrupts the previous one; there is no queue.
type SynthesisController struct {
	engine ports.SpeechEngine
	events ports.EventSink
	cfg    SynthesisConfig

	onSpeaking func(speaking bool)

	mu         sync.Mutex
	baseCtx    context.Context
	generation int
	cancel     context.CancelFunc
	speaking   bool
}

func NewSynthesisController(engine ports.SpeechEngine, events ports.EventSink, cfg SynthesisConfig) *SynthesisController {
	if cfg.Rate <= 0 {
		cfg.Rate = 1
	}
	if cfg.Pitch <= 0 {
		cfg.Pitch = 1
	}
	if cfg.Volume <= 0 {
		cfg.Volume = 1
	}
	return &SynthesisController{engine: engine, events: events, cfg: cfg, baseCtx: context.Background()}
}

// Available reports whether an engine is configured.
func (c *SynthesisController) Available() bool {
	return c.engine != nil
}

// Speaking reports whether an utterance is playing.
func (c *SynthesisController) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speaking
}

// Speak dispatches text and returns immediately.
func (c *SynthesisController) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" || c.engine == nil {
		return
	}

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.generation++
	generation := c.generation
	ctx, cancel := context.WithCancel(c.baseCtx)
	c.cancel = cancel
	c.speaking = true
	c.mu.Unlock()

	c.publish(true)

	utterance := domain.Utterance{
		Text:     text,
		Language: c.cfg.Language,
		Rate:     c.cfg.Rate,
		Pitch:    c.cfg.Pitch,
		Volume:   c.cfg.Volume,
	}
	go func() {
		err := c.engine.Speak(ctx, utterance)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Msg("speech synthesis failed")
		}
		c.finish(generation)
	}()
}

// Cancel stops the current utterance, if any.
func (c *SynthesisController) Cancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	wasSpeaking := c.speaking
	c.speaking = false
	c.mu.Unlock()

	if wasSpeaking {
		c.publish(false)
	}
}

func (c *SynthesisController) finish(generation int) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.speaking = false
	c.mu.Unlock()

	c.publish(false)
}

func (c *SynthesisController) publish(speaking bool) {
	c.events.SpeakingChanged(speaking)
	if c.onSpeaking != nil {
		c.onSpeaking(speaking)
	}
}
