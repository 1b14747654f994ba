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

var ErrVoiceUnavailable = errors.New("voice features are unavailable")

const (
	skippedAnswer   = "Skipped"
	fallbackReply   = "Sorry, I couldn't process that answer. Could you try again?"
	completionReply = "Great job! Here is your interview summary and feedback. You can review your answers and see areas for improvement below."
	voiceOffMessage = "Speech recognition is not available on this system. Voice features are disabled, but you can keep typing your answers."
)

// MessageRenderer turns message markdown into HTML.
type MessageRenderer interface {
	Render(text string) string
}

// ChatConfig controls chat presentation timing.
type ChatConfig struct {
	TypewriterInterval time.Duration
}

// ChatController binds the interview, recognition and synthesis controllers
// into the text chat and the voice call.
type ChatController struct {
	interview   *InterviewController
	recognition *RecognitionController
	synthesis   *SynthesisController
	sched       Scheduler
	events      ports.EventSink
	renderer    MessageRenderer
	cfg         ChatConfig

	mu             sync.Mutex
	ctx            context.Context
	messages       []domain.ChatMessage
	draft          string
	thinking       bool
	callActive     bool
	voiceAvailable bool
	voiceMessage   string
	reveal         *typewriter
	revealIndex    int
	cancelTick     func() bool
}

func NewChatController(
	interview *InterviewController,
	recognition *RecognitionController,
	synthesis *SynthesisController,
	sched Scheduler,
	events ports.EventSink,
	renderer MessageRenderer,
	cfg ChatConfig,
) *ChatController {
	c := &ChatController{
		interview:   interview,
		recognition: recognition,
		synthesis:   synthesis,
		sched:       sched,
		events:      events,
		renderer:    renderer,
		cfg:         cfg,
		ctx:         context.Background(),
	}
	recognition.onFinal = c.handleFinal
	recognition.onCritical = c.handleCritical
	recognition.onState = func(state domain.RecognitionState) {
		interview.SetRecording(state == domain.RecognitionListening)
	}
	synthesis.onSpeaking = interview.SetAvatarSpeaking
	return c
}

// Mount binds the controller to ctx and checks voice support once.
func (c *ChatController) Mount(ctx context.Context) {
	c.mu.Lock()
	if ctx != nil {
		c.ctx = ctx
	}
	c.voiceAvailable = c.recognition.provider != nil
	c.voiceMessage = ""
	if !c.voiceAvailable {
		c.voiceMessage = voiceOffMessage
	}
	view := c.viewLocked()
	available := c.voiceAvailable
	c.mu.Unlock()

	if !available {
		c.events.Notify(domain.Notification{
			Title:       "Voice unavailable",
			Description: voiceOffMessage,
			Code:        domain.ErrorCodeVoiceDisabled,
		})
	}
	c.events.ChatChanged(view)
}

// View returns the current chat surface.
func (c *ChatController) View() domain.ChatView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// StartInterview starts a session and opens the chat with its first question.
func (c *ChatController) StartInterview(ctx context.Context, topic string, kind string) error {
	if err := c.interview.Start(ctx, topic, kind); err != nil {
		return err
	}
	state := c.interview.State()
	question, ok := state.Session.CurrentQuestion()
	if !ok {
		return nil
	}

	c.mu.Lock()
	c.stopRevealLocked()
	c.messages = nil
	c.draft = ""
	c.thinking = false
	c.appendAILocked(question.Text)
	view := c.viewLocked()
	c.mu.Unlock()

	c.events.ChatChanged(view)
	return nil
}

// Send submits text as the answer to the current question.
func (c *ChatController) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if c.thinking {
		c.mu.Unlock()
		return ErrRequestInFlight
	}
	speakNow := c.completeRevealLocked()
	c.messages = append(c.messages, domain.ChatMessage{Sender: domain.SenderUser, Text: text})
	c.thinking = true
	view := c.viewLocked()
	c.mu.Unlock()

	c.speak(speakNow)
	c.events.ChatChanged(view)

	result, err := c.interview.SubmitAnswer(ctx, text)
	if errors.Is(err, ErrNoActiveSession) || errors.Is(err, ErrRequestInFlight) {
		c.mu.Lock()
		c.thinking = false
		view = c.viewLocked()
		c.mu.Unlock()
		c.events.ChatChanged(view)
		return err
	}

	reply := c.replyFor(result)

	c.mu.Lock()
	c.thinking = false
	speakNow = c.appendAILocked(reply)
	view = c.viewLocked()
	c.mu.Unlock()

	c.speak(speakNow)
	c.events.ChatChanged(view)
	return err
}

// Skip answers the current question with the skip sentinel.
func (c *ChatController) Skip(ctx context.Context) error {
	return c.Send(ctx, skippedAnswer)
}

// SetDraft replaces the text box contents.
func (c *ChatController) SetDraft(text string) {
	c.mu.Lock()
	c.draft = text
	view := c.viewLocked()
	c.mu.Unlock()
	c.events.ChatChanged(view)
}

// HandleKey applies a key press in the text box. Enter submits the draft,
// Shift+Enter inserts a newline. It reports whether the draft was submitted.
func (c *ChatController) HandleKey(ctx context.Context, key string, shift bool) (bool, error) {
	if key != "Enter" {
		return false, nil
	}

	c.mu.Lock()
	if shift {
		c.draft += "\n"
		view := c.viewLocked()
		c.mu.Unlock()
		c.events.ChatChanged(view)
		return false, nil
	}
	if c.thinking || strings.TrimSpace(c.draft) == "" {
		c.mu.Unlock()
		return false, nil
	}
	text := c.draft
	c.draft = ""
	c.mu.Unlock()

	return true, c.Send(ctx, text)
}

// ToggleMic starts or stops dictation into the draft. It is a no-op during a call.
func (c *ChatController) ToggleMic(ctx context.Context) error {
	c.mu.Lock()
	available := c.voiceAvailable
	inCall := c.callActive
	c.mu.Unlock()

	if !available {
		return ErrVoiceUnavailable
	}
	if inCall {
		return nil
	}
	if c.recognition.Listening() {
		c.recognition.Stop()
		return nil
	}
	c.recognition.Start(ctx)
	return nil
}

// ToggleCall enters or leaves call mode.
func (c *ChatController) ToggleCall(ctx context.Context) error {
	c.mu.Lock()
	active := c.callActive
	c.mu.Unlock()
	return c.SetCallMode(ctx, !active)
}

// SetCallMode enters or leaves call mode. Entering starts recognition at once;
// leaving cancels speech and stops recognition.
func (c *ChatController) SetCallMode(ctx context.Context, active bool) error {
	c.mu.Lock()
	if active && !c.voiceAvailable {
		c.mu.Unlock()
		return ErrVoiceUnavailable
	}
	if c.callActive == active {
		c.mu.Unlock()
		return nil
	}
	c.callActive = active
	view := c.viewLocked()
	c.mu.Unlock()

	c.events.CallStatusChanged(active)
	c.events.ChatChanged(view)

	if active {
		c.recognition.SetCallActive(ctx, true)
		return nil
	}
	c.synthesis.Cancel()
	c.recognition.SetCallActive(ctx, false)
	return nil
}

// End finishes the interview early and moves to the summary.
func (c *ChatController) End(ctx context.Context) error {
	_ = c.SetCallMode(ctx, false)

	if err := c.interview.EndInterview(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.thinking = false
	c.completeRevealLocked()
	c.appendAILocked(completionReply)
	view := c.viewLocked()
	c.mu.Unlock()

	c.events.ChatChanged(view)
	return nil
}

// Reset leaves the interview and clears the conversation.
func (c *ChatController) Reset() {
	_ = c.SetCallMode(c.context(), false)
	c.recognition.Stop()

	c.mu.Lock()
	c.stopRevealLocked()
	c.messages = nil
	c.draft = ""
	c.thinking = false
	view := c.viewLocked()
	c.mu.Unlock()

	c.interview.Reset()
	c.events.ChatChanged(view)
}

// DismissSpeechError hides the current recognition error.
func (c *ChatController) DismissSpeechError() {
	c.recognition.DismissError()
}

// Close releases timers, the recognizer and any speech in progress.
func (c *ChatController) Close() {
	c.mu.Lock()
	c.stopRevealLocked()
	wasCall := c.callActive
	c.callActive = false
	c.mu.Unlock()

	if wasCall {
		c.events.CallStatusChanged(false)
	}
	c.synthesis.Cancel()
	c.recognition.Close()
}

func (c *ChatController) handleFinal(text string) {
	c.mu.Lock()
	if c.callActive {
		ctx := c.ctx
		c.mu.Unlock()
		go func() {
			if err := c.Send(ctx, text); err != nil {
				log.Warn().Err(err).Msg("spoken answer was not submitted")
			}
		}()
		return
	}

	if c.draft == "" || strings.HasSuffix(c.draft, " ") || strings.HasSuffix(c.draft, "\n") {
		c.draft += text
	} else {
		c.draft += " " + text
	}
	view := c.viewLocked()
	c.mu.Unlock()
	c.events.ChatChanged(view)
}

func (c *ChatController) handleCritical(err domain.RecognitionError) {
	log.Warn().Str("code", string(err.Code)).Msg("ending call after recognition failure")
	_ = c.SetCallMode(c.context(), false)
}

func (c *ChatController) replyFor(result *ports.AnswerResult) string {
	if result == nil {
		return fallbackReply
	}

	var parts []string
	if text := strings.TrimSpace(result.FeedbackText); text != "" {
		parts = append(parts, text)
	}
	if c.interview.State().Phase == domain.PhaseSummary {
		parts = append(parts, completionReply)
	} else if question := strings.TrimSpace(result.NextQuestion); question != "" {
		parts = append(parts, question)
	}
	if len(parts) == 0 {
		return fallbackReply
	}
	return strings.Join(parts, "\n\n")
}

// appendAILocked adds an AI message and starts its reveal. It returns text
// that must be spoken once the lock is released.
func (c *ChatController) appendAILocked(text string) string {
	speakNow := c.completeRevealLocked()
	c.messages = append(c.messages, domain.ChatMessage{Sender: domain.SenderAI, Text: text, HTML: c.render(text)})

	tw := newTypewriter(text)
	if tw.empty() {
		return speakNow
	}
	if c.cfg.TypewriterInterval <= 0 {
		if c.callActive && speakNow == "" {
			return text
		}
		return speakNow
	}
	c.reveal = tw
	c.revealIndex = len(c.messages) - 1
	c.cancelTick = c.sched.AfterFunc(c.cfg.TypewriterInterval, func() { c.tick(tw) })
	return speakNow
}

func (c *ChatController) tick(tw *typewriter) {
	c.mu.Lock()
	if c.reveal != tw {
		c.mu.Unlock()
		return
	}
	speak, done := tw.step()
	if done {
		c.reveal = nil
		c.cancelTick = nil
	} else {
		c.cancelTick = c.sched.AfterFunc(c.cfg.TypewriterInterval, func() { c.tick(tw) })
	}
	text := ""
	if speak && c.callActive {
		text = tw.text
	}
	view := c.viewLocked()
	c.mu.Unlock()

	c.speak(text)
	c.events.ChatChanged(view)
}

// completeRevealLocked jumps a running reveal to its end. If speech has not
// fired for it yet, the text to speak is returned.
func (c *ChatController) completeRevealLocked() string {
	tw := c.reveal
	if tw == nil {
		return ""
	}
	c.stopRevealLocked()
	if tw.spoken {
		return ""
	}
	tw.spoken = true
	if !c.callActive {
		return ""
	}
	return tw.text
}

func (c *ChatController) stopRevealLocked() {
	if c.cancelTick != nil {
		c.cancelTick()
		c.cancelTick = nil
	}
	c.reveal = nil
}

func (c *ChatController) speak(text string) {
	if text == "" {
		return
	}
	c.synthesis.Speak(text)
}

func (c *ChatController) render(text string) string {
	if c.renderer == nil {
		return ""
	}
	return c.renderer.Render(text)
}

func (c *ChatController) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

func (c *ChatController) viewLocked() domain.ChatView {
	view := domain.ChatView{
		Messages:       make([]domain.ChatMessage, 0, len(c.messages)),
		Thinking:       c.thinking,
		Draft:          c.draft,
		CallActive:     c.callActive,
		VoiceAvailable: c.voiceAvailable,
		VoiceMessage:   c.voiceMessage,
	}
	for i, message := range c.messages {
		if c.reveal != nil && i == c.revealIndex {
			continue
		}
		view.Messages = append(view.Messages, message)
	}
	if c.reveal != nil {
		prefix := c.reveal.prefix()
		view.Revealing = &domain.ChatMessage{Sender: domain.SenderAI, Text: prefix, HTML: c.render(prefix)}
	}
	return view
}
