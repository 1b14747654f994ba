package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

// RecognitionConfig controls the recognition restart policy.
type RecognitionConfig struct {
	Recognizer       ports.RecognitionConfig
	RestartDelay     time.Duration
	LivenessInterval time.Duration
}

// RecognitionController keeps a continuous recognizer alive for as long as the
// owner wants to listen. It restarts dropped sessions, classifies errors and
// reports interim and final text.
type RecognitionController struct {
	provider ports.RecognitionProvider
	sched    Scheduler
	events   ports.EventSink
	cfg      RecognitionConfig

	// Set by the owning chat controller before first use.
	onFinal    func(text string)
	onCritical func(err domain.RecognitionError)
	onState    func(state domain.RecognitionState)

	mu            sync.Mutex
	baseCtx       context.Context
	state         domain.RecognitionState
	wantListening bool
	callActive    bool
	generation    int
	session       ports.RecognitionSession
	interim       string
	lastErr       *domain.RecognitionError
	cancelRestart func() bool
	cancelLive    func() bool
	closed        bool
}

func NewRecognitionController(provider ports.RecognitionProvider, sched Scheduler, events ports.EventSink, cfg RecognitionConfig) *RecognitionController {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 300 * time.Millisecond
	}
	if cfg.LivenessInterval <= 0 {
		cfg.LivenessInterval = 2 * time.Second
	}
	return &RecognitionController{
		provider: provider,
		sched:    sched,
		events:   events,
		cfg:      cfg,
		baseCtx:  context.Background(),
		state:    domain.RecognitionIdle,
	}
}

// Status returns what the UI should currently show.
func (c *RecognitionController) Status() domain.RecognitionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Listening reports whether the owner currently wants to hear speech.
func (c *RecognitionController) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wantListening
}

// Start begins listening on behalf of the user.
func (c *RecognitionController) Start(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if ctx != nil {
		c.baseCtx = ctx
	}
	c.wantListening = true
	c.mu.Unlock()

	c.launch()
}

// Stop ends listening on behalf of the user. It never restarts on its own.
func (c *RecognitionController) Stop() {
	c.mu.Lock()
	c.wantListening = false
	c.stopRestartLocked()
	session := c.session
	generation := c.generation
	if session == nil {
		changed := c.state != domain.RecognitionIdle
		c.generation++
		c.state = domain.RecognitionIdle
		c.interim = ""
		status := c.statusLocked()
		c.mu.Unlock()
		if changed {
			c.publish(status)
		}
		return
	}
	c.state = domain.RecognitionStopping
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)

	if err := session.Stop(); err != nil {
		log.Warn().Err(err).Msg("recognition session did not stop cleanly")
	}

	c.mu.Lock()
	if c.generation == generation {
		c.generation++
		c.session = nil
		c.state = domain.RecognitionIdle
		c.interim = ""
	}
	status = c.statusLocked()
	c.mu.Unlock()
	c.publish(status)
}

// SetCallActive switches the continuous call behaviour on or off.
func (c *RecognitionController) SetCallActive(ctx context.Context, active bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.callActive = active
	if !active {
		c.stopLivenessLocked()
		c.mu.Unlock()
		c.Stop()
		return
	}
	if ctx != nil {
		c.baseCtx = ctx
	}
	c.wantListening = true
	c.scheduleLivenessLocked()
	c.mu.Unlock()

	c.launch()
}

// DismissError clears the displayed error.
func (c *RecognitionController) DismissError() {
	c.mu.Lock()
	if c.lastErr == nil {
		c.mu.Unlock()
		return
	}
	c.lastErr = nil
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)
}

// Close releases the recognizer and every pending timer.
func (c *RecognitionController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.callActive = false
	c.stopLivenessLocked()
	c.mu.Unlock()

	c.Stop()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// launch starts a recognition session if none is running.
func (c *RecognitionController) launch() {
	c.mu.Lock()
	if c.closed || !c.wantListening || c.state != domain.RecognitionIdle {
		c.mu.Unlock()
		return
	}
	c.stopRestartLocked()
	c.generation++
	generation := c.generation
	c.state = domain.RecognitionStarting
	ctx := c.baseCtx
	cfg := c.cfg.Recognizer
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)

	session, err := c.provider.StartRecognition(ctx, cfg)

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		if session != nil {
			_ = session.Stop()
		}
		return
	}
	if err != nil {
		c.state = domain.RecognitionIdle
		c.mu.Unlock()
		c.handleError(generation, classifyStartError(err))
		return
	}
	c.session = session
	c.mu.Unlock()

	go c.consume(generation, session)
}

func (c *RecognitionController) consume(generation int, session ports.RecognitionSession) {
	ended := false
	for event := range session.Events() {
		switch event.Kind {
		case domain.RecognitionEventStart:
			c.handleStart(generation)
		case domain.RecognitionEventResult:
			c.handleResult(generation, event.Segments)
		case domain.RecognitionEventError:
			if event.Error != nil {
				c.handleError(generation, *event.Error)
			}
		case domain.RecognitionEventEnd:
			ended = true
			c.handleEnd(generation)
		}
	}
	if !ended {
		c.handleEnd(generation)
	}
}

func (c *RecognitionController) handleStart(generation int) {
	c.mu.Lock()
	if c.generation != generation || c.state != domain.RecognitionStarting {
		c.mu.Unlock()
		return
	}
	c.state = domain.RecognitionListening
	c.interim = ""
	c.lastErr = nil
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)
}

func (c *RecognitionController) handleResult(generation int, segments []domain.SpeechSegment) {
	interim, final := splitSegments(segments)

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.interim = interim
	if final != "" {
		c.interim = ""
	}
	status := c.statusLocked()
	onFinal := c.onFinal
	c.mu.Unlock()

	c.publish(status)
	if final != "" && onFinal != nil {
		onFinal(final)
	}
}

func (c *RecognitionController) handleError(generation int, recErr domain.RecognitionError) {
	log.Warn().Str("code", string(recErr.Code)).Str("detail", recErr.Detail).Msg("speech recognition error")

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.lastErr = &recErr

	if recErr.Code.Critical() {
		session := c.session
		c.session = nil
		c.generation++
		c.wantListening = false
		c.state = domain.RecognitionIdle
		c.interim = ""
		c.stopRestartLocked()
		c.stopLivenessLocked()
		wasCall := c.callActive
		c.callActive = false
		onCritical := c.onCritical
		status := c.statusLocked()
		c.mu.Unlock()

		if session != nil {
			_ = session.Stop()
		}
		c.publish(status)
		if wasCall && onCritical != nil {
			onCritical(recErr)
		}
		return
	}

	if c.callActive {
		c.scheduleRestartLocked()
	}
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)
}

func (c *RecognitionController) handleEnd(generation int) {
	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return
	}
	c.session = nil
	c.state = domain.RecognitionIdle
	c.interim = ""
	if c.callActive || c.wantListening {
		c.scheduleRestartLocked()
	}
	status := c.statusLocked()
	c.mu.Unlock()
	c.publish(status)
}

func (c *RecognitionController) scheduleRestartLocked() {
	if c.cancelRestart != nil || c.closed {
		return
	}
	c.cancelRestart = c.sched.AfterFunc(c.cfg.RestartDelay, func() {
		c.mu.Lock()
		c.cancelRestart = nil
		c.mu.Unlock()
		c.launch()
	})
}

func (c *RecognitionController) stopRestartLocked() {
	if c.cancelRestart != nil {
		c.cancelRestart()
		c.cancelRestart = nil
	}
}

// scheduleLivenessLocked arms the supervisory check that recovers a call whose
// recognizer went idle without an end event.
func (c *RecognitionController) scheduleLivenessLocked() {
	if c.cancelLive != nil {
		return
	}
	c.cancelLive = c.sched.AfterFunc(c.cfg.LivenessInterval, func() {
		c.mu.Lock()
		c.cancelLive = nil
		if !c.callActive || c.closed {
			c.mu.Unlock()
			return
		}
		stuck := c.state == domain.RecognitionIdle && c.cancelRestart == nil
		if stuck {
			c.wantListening = true
		}
		c.scheduleLivenessLocked()
		c.mu.Unlock()

		if stuck {
			log.Debug().Msg("recognition idle during call, forcing restart")
			c.launch()
		}
	})
}

func (c *RecognitionController) stopLivenessLocked() {
	if c.cancelLive != nil {
		c.cancelLive()
		c.cancelLive = nil
	}
}

func (c *RecognitionController) statusLocked() domain.RecognitionStatus {
	status := domain.RecognitionStatus{State: c.state, Interim: c.interim}
	if c.lastErr != nil {
		status.ErrorCode = c.lastErr.Code
		status.Error = RecognitionErrorMessage(c.lastErr.Code)
	}
	return status
}

func (c *RecognitionController) publish(status domain.RecognitionStatus) {
	c.events.RecognitionChanged(status)
	if c.onState != nil {
		c.onState(status.State)
	}
}

// splitSegments joins the interim and final fragments of one result event.
func splitSegments(segments []domain.SpeechSegment) (string, string) {
	var interim, final []string
	for _, segment := range segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		if segment.Final {
			final = append(final, text)
		} else {
			interim = append(interim, text)
		}
	}
	return strings.Join(interim, " "), strings.Join(final, " ")
}

func classifyStartError(err error) domain.RecognitionError {
	var recErr domain.RecognitionError
	if errors.As(err, &recErr) {
		return recErr
	}
	return domain.RecognitionError{Code: domain.RecognitionErrAborted, Detail: err.Error()}
}

// RecognitionErrorMessage is the human-readable text for an error code.
func RecognitionErrorMessage(code domain.RecognitionErrorCode) string {
	switch code {
	case domain.RecognitionErrNotAllowed:
		return "Microphone access was denied. Allow microphone access to use voice input."
	case domain.RecognitionErrNetwork:
		return "Speech recognition lost its network connection. Voice input has stopped."
	case domain.RecognitionErrNoSpeech:
		return "No speech was detected. Try speaking again."
	case domain.RecognitionErrAudioCapture:
		return "No microphone was found. Check your audio input device."
	case domain.RecognitionErrAborted:
		return "Speech recognition was interrupted."
	default:
		if code == "" {
			return ""
		}
		return "Speech recognition error: " + string(code)
	}
}
