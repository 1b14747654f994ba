// Package voice assembles microphone capture, streaming transcription and
// speech synthesis into the recognizer and speaker the interview uses.
package voice

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// Corrector rewrites final transcripts, typically with vocabulary rules.
type Corrector interface {
	Correct(text string) string
}

type RecognizerConfig struct {
	Audio          ports.AudioConfig
	ChunkSize      int
	StreamingGrace time.Duration
	// NoSpeechTimeout ends a session that hears nothing. Zero disables it.
	NoSpeechTimeout time.Duration
}

// Recognizer behaves like a continuous browser recognizer on top of a
// microphone and a streaming transcription provider.
type Recognizer struct {
	capture     ports.AudioCapture
	transcriber ports.TranscriptionProvider
	corrector   Corrector
	cfg         RecognizerConfig
}

var _ ports.RecognitionProvider = (*Recognizer)(nil)

func NewRecognizer(capture ports.AudioCapture, transcriber ports.TranscriptionProvider, corrector Corrector, cfg RecognizerConfig) *Recognizer {
	if cfg.StreamingGrace <= 0 {
		cfg.StreamingGrace = time.Second
	}
	return &Recognizer{
		capture:     capture,
		transcriber: transcriber,
		corrector:   corrector,
		cfg:         cfg,
	}
}

// StartRecognition opens the microphone and the provider stream. Failures are
// returned as domain.RecognitionError where the cause is known.
func (r *Recognizer) StartRecognition(ctx context.Context, cfg ports.RecognitionConfig) (ports.RecognitionSession, error) {
	runCtx, cancel := context.WithCancel(ctx)

	audio, err := r.capture.Start(runCtx, r.cfg.Audio)
	if err != nil {
		cancel()
		return nil, asRecognitionError(err, domain.RecognitionErrAudioCapture)
	}

	stream, err := r.transcriber.StartStreaming(runCtx, ports.StreamingConfig{
		SampleRate:     r.cfg.Audio.SampleRate,
		Channels:       r.cfg.Audio.Channels,
		Encoding:       "linear16",
		Language:       cfg.Language,
		InterimResults: cfg.InterimResults,
	})
	if err != nil {
		_ = audio.Stop()
		cancel()
		return nil, asRecognitionError(err, domain.RecognitionErrNetwork)
	}

	s := &session{
		audio:     audio,
		stream:    stream,
		corrector: r.corrector,
		cfg:       cfg,
		grace:     r.cfg.StreamingGrace,
		noSpeech:  r.cfg.NoSpeechTimeout,
		cancel:    cancel,
		events:    make(chan domain.RecognitionEvent, 32),
		pumpErr:   make(chan error, 1),
		pumpDone:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	s.events <- domain.RecognitionEvent{Kind: domain.RecognitionEventStart}

	go func() {
		defer close(s.pumpDone)
		s.pumpErr <- pumpAudio(audio, stream, r.cfg.ChunkSize)
	}()
	go s.run()

	log.Debug().Str("language", cfg.Language).Bool("continuous", cfg.Continuous).Msg("recognition started")
	return s, nil
}

type session struct {
	audio     ports.AudioSession
	stream    ports.StreamingSession
	corrector Corrector
	cfg       ports.RecognitionConfig
	grace     time.Duration
	noSpeech  time.Duration
	cancel    context.CancelFunc

	events   chan domain.RecognitionEvent
	pumpErr  chan error
	pumpDone chan struct{}
	done     chan struct{}

	stopping atomic.Bool
	stopOnce sync.Once
}

func (s *session) Events() <-chan domain.RecognitionEvent {
	return s.events
}

// Stop ends capture and waits for the provider to deliver the last results.
// The events channel still ends with a single end event.
func (s *session) Stop() error {
	s.stopOnce.Do(func() {
		s.stopping.Store(true)
		if err := s.audio.Stop(); err != nil {
			log.Debug().Err(err).Msg("microphone capture stopped with error")
		}
		<-s.pumpDone
		if err := waitForStream(s.stream, s.grace); err != nil {
			log.Debug().Err(err).Msg("transcription stream closed with error")
		}
	})
	<-s.done
	return nil
}

// abort tears the session down after a failure without waiting for results.
func (s *session) abort() {
	s.stopOnce.Do(func() {
		_ = s.audio.Stop()
		_ = s.stream.Close()
	})
}

func (s *session) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.cancel()

	var noSpeech <-chan time.Time
	if s.noSpeech > 0 {
		timer := time.NewTimer(s.noSpeech)
		defer timer.Stop()
		noSpeech = timer.C
	}

	transcripts := s.stream.Events()
	pumpErr := s.pumpErr
	for transcripts != nil {
		select {
		case event, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			noSpeech = nil
			s.handleTranscript(event)
		case err := <-pumpErr:
			pumpErr = nil
			if err != nil && !s.stopping.Load() {
				s.fail(asRecognitionError(err, domain.RecognitionErrAudioCapture))
			}
		case <-noSpeech:
			noSpeech = nil
			s.fail(domain.RecognitionError{Code: domain.RecognitionErrNoSpeech})
		}
	}

	if err := s.stream.Wait(); err != nil && !s.stopping.Load() {
		s.fail(asRecognitionError(err, domain.RecognitionErrNetwork))
	}
	_ = s.audio.Stop()
	s.events <- domain.RecognitionEvent{Kind: domain.RecognitionEventEnd}
}

func (s *session) handleTranscript(event domain.TranscriptEvent) {
	switch event.Kind {
	case domain.TranscriptKindPartial:
		if !s.cfg.InterimResults {
			return
		}
		s.events <- domain.RecognitionEvent{
			Kind:     domain.RecognitionEventResult,
			Segments: []domain.SpeechSegment{{Text: event.Text}},
		}
	case domain.TranscriptKindFinal:
		text := event.Text
		if s.corrector != nil {
			text = s.corrector.Correct(text)
		}
		s.events <- domain.RecognitionEvent{
			Kind:     domain.RecognitionEventResult,
			Segments: []domain.SpeechSegment{{Text: text, Final: true}},
		}
		if !s.cfg.Continuous && event.IsSpeechFinal {
			go func() { _ = s.Stop() }()
		}
	}
}

func (s *session) fail(recErr domain.RecognitionError) {
	s.stopping.Store(true)
	s.events <- domain.RecognitionEvent{Kind: domain.RecognitionEventError, Error: &recErr}
	go s.abort()
}
