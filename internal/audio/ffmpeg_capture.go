// Package audio captures microphone PCM and plays synthesized speech.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

const (
	defaultProbe   = 250 * time.Millisecond
	stopGrace      = 1200 * time.Millisecond
	maxStderrBytes = 4096
)

// FFMPEGCapture streams microphone PCM audio from an ffmpeg child process.
type FFMPEGCapture struct {
	command string
	probe   time.Duration
}

var _ ports.AudioCapture = (*FFMPEGCapture)(nil)

func NewFFMPEGCapture(command string) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	return &FFMPEGCapture{command: command, probe: defaultProbe}
}

// Start launches the recorder. A recorder that cannot be started, or exits
// during the probe window, is reported as a domain.RecognitionError.
func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withCaptureDefaults(cfg)

	cmd := exec.CommandContext(ctx, c.command, recorderArgs(cfg)...)
	stderr := &tailBuffer{limit: maxStderrBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, domain.RecognitionError{Code: domain.RecognitionErrAudioCapture, Detail: err.Error()}
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	select {
	case err := <-waitErr:
		detail := "recorder exited before capture started"
		if err != nil {
			detail = fmt.Sprintf("%s: %v", detail, err)
		}
		if msg := stderr.String(); msg != "" {
			detail += ": " + msg
		}
		return nil, domain.RecognitionError{Code: classifyRecorderOutput(stderr.String()), Detail: detail}
	case <-time.After(c.probe):
	}

	log.Debug().
		Str("device", cfg.InputDevice).
		Int("sample_rate", cfg.SampleRate).
		Msg("microphone capture started")

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

func withCaptureDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return cfg
}

func recorderArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

// classifyRecorderOutput maps recorder diagnostics to a recognition error code.
func classifyRecorderOutput(stderr string) domain.RecognitionErrorCode {
	lower := strings.ToLower(stderr)
	for _, marker := range []string{"permission denied", "access denied", "not permitted"} {
		if strings.Contains(lower, marker) {
			return domain.RecognitionErrNotAllowed
		}
	}
	return domain.RecognitionErrAudioCapture
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *tailBuffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder and kills it if it does not exit in time.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}

		if s.stopErr != nil && s.stderr != nil {
			if msg := s.stderr.String(); msg != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, msg)
			}
		}
	})

	return s.stopErr
}

// normalizeStopErr ignores the non-zero exit that an interrupted recorder reports.
func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it. It is written by the
// exec copier goroutine and read by Stop.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   bytes.Buffer
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if over := b.buf.Len() - b.limit; b.limit > 0 && over > 0 {
		b.buf.Next(over)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.TrimSpace(b.buf.String())
}
