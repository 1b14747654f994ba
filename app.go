package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"interviewmic/internal/bootstrap"
	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
	"interviewmic/internal/usecase"
)

const (
	eventInterview   = "interviewmic:interview"
	eventChat        = "interviewmic:chat"
	eventRecognition = "interviewmic:recognition"
	eventSpeaking    = "interviewmic:speaking"
	eventCall        = "interviewmic:call"
	eventUser        = "interviewmic:user"
	eventNotify      = "interviewmic:notify"
)

var errNotInitialized = errors.New("application is not initialized")

// App is the Wails application root.
type App struct {
	ctx context.Context

	services  bootstrap.Services
	ready     bool
	clipboard ports.Clipboard
	bootErr   error
}

func NewApp() *App {
	return &App{clipboard: &wailsClipboard{}}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		log.Error().Err(err).Msg("startup failed")
		a.notifyError(domain.ErrorCodeStartup, err)
		return
	}

	a.services = services
	a.ready = true
	services.Chat.Mount(ctx)
	a.InterviewChanged(services.Interview.State())

	go func() {
		if _, err := services.Auth.Refresh(ctx); err != nil {
			log.Warn().Err(err).Msg("stored session could not be restored")
		}
	}()
}

func (a *App) shutdown(context.Context) {
	if !a.ready {
		return
	}
	a.services.Chat.Close()
}

// ListTopics returns the interview topics offered on the home screen.
func (a *App) ListTopics() []domain.Topic {
	if !a.ready {
		return []domain.Topic{}
	}
	return a.services.Topics.List()
}

// StartInterview begins a session on topic and opens the chat with its first question.
func (a *App) StartInterview(topic string, kind string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if entry, ok := a.services.Topics.Lookup(topic); ok {
		topic = entry.ID
	}
	return a.services.Chat.StartInterview(a.ctx, topic, kind)
}

// SendMessage submits text as the answer to the current question.
func (a *App) SendMessage(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.pending(a.services.Chat.Send(a.ctx, text))
}

// SkipQuestion moves past the current question without an answer.
func (a *App) SkipQuestion() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.pending(a.services.Chat.Skip(a.ctx))
}

// SetDraft mirrors the text box contents.
func (a *App) SetDraft(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Chat.SetDraft(text)
	return nil
}

// HandleKey forwards a key press from the text box and reports whether it submitted the draft.
func (a *App) HandleKey(key string, shift bool) (bool, error) {
	if err := a.requireReady(); err != nil {
		return false, err
	}
	submitted, err := a.services.Chat.HandleKey(a.ctx, key, shift)
	return submitted, a.pending(err)
}

// EndInterview finishes the session early and requests the summary.
func (a *App) EndInterview() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.pending(a.services.Chat.End(a.ctx))
}

// ResetInterview returns to topic selection.
func (a *App) ResetInterview() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Chat.Reset()
	return nil
}

// ToggleMic starts or stops dictation into the draft.
func (a *App) ToggleMic() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.voice(a.services.Chat.ToggleMic(a.ctx))
}

// ToggleCall enters or leaves hands-free call mode.
func (a *App) ToggleCall() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.voice(a.services.Chat.ToggleCall(a.ctx))
}

// SetCallMode sets call mode explicitly.
func (a *App) SetCallMode(active bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.voice(a.services.Chat.SetCallMode(a.ctx, active))
}

// DismissSpeechError hides the current recognition error banner.
func (a *App) DismissSpeechError() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.services.Chat.DismissSpeechError()
	return nil
}

// GetInterviewState returns the current interview snapshot.
func (a *App) GetInterviewState() domain.InterviewState {
	if !a.ready {
		return domain.InterviewState{Phase: domain.PhaseTopicSelection}
	}
	return a.services.Interview.State()
}

// GetChatView returns the current chat surface.
func (a *App) GetChatView() domain.ChatView {
	if !a.ready {
		return domain.ChatView{Messages: []domain.ChatMessage{}}
	}
	return a.services.Chat.View()
}

// CopySummary puts the finished interview on the clipboard.
func (a *App) CopySummary() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	text := usecase.SummaryText(a.services.Interview.State().Session)
	if text == "" {
		return usecase.ErrNoActiveSession
	}
	if err := a.clipboard.SetText(a.ctx, text); err != nil {
		a.notifyError(domain.ErrorCodeClipboard, err)
		return err
	}
	a.Notify(domain.Notification{Title: "Copied", Description: "Interview summary copied to clipboard"})
	return nil
}

// Login signs in with email and password.
func (a *App) Login(email string, password string) (*domain.User, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	user, err := a.services.Auth.Login(a.ctx, email, password)
	if err != nil {
		a.notifyError(domain.ErrorCodeAuth, err)
		return nil, err
	}
	return user, nil
}

// LoginWithToken signs in with a token issued by the OAuth redirect.
func (a *App) LoginWithToken(token string) (*domain.User, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	user, err := a.services.Auth.LoginWithToken(a.ctx, token)
	if err != nil {
		a.notifyError(domain.ErrorCodeAuth, err)
		return nil, err
	}
	return user, nil
}

// Signup registers an account and returns the backend's confirmation message.
func (a *App) Signup(email string, name string, password string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	message, err := a.services.Auth.Signup(a.ctx, email, name, password)
	if err != nil {
		a.notifyError(domain.ErrorCodeAuth, err)
		return "", err
	}
	return message, nil
}

// Logout forgets the stored session.
func (a *App) Logout() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.services.Auth.Logout()
}

// CurrentUser returns the signed-in user or nil.
func (a *App) CurrentUser() *domain.User {
	if !a.ready {
		return nil
	}
	return a.services.Auth.CurrentUser()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if !a.ready {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"backend":        cfg.Backend.BaseURL,
		"speechProvider": "Deepgram",
		"speechModel":    cfg.Deepgram.Model,
		"language":       cfg.Deepgram.Language,
		"voiceProvider":  "Cartesia",
		"voiceModel":     cfg.Speech.Model,
		"audioInput":     cfg.Audio.InputDevice,
		"vocabularyFile": cfg.Vocabulary.Path,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return errNotInitialized
	}
	return nil
}

// pending turns the overlapping-request error into a toast.
func (a *App) pending(err error) error {
	if errors.Is(err, usecase.ErrRequestInFlight) {
		a.notifyError(domain.ErrorCodeRequestPending, err)
	}
	return err
}

func (a *App) voice(err error) error {
	if errors.Is(err, usecase.ErrVoiceUnavailable) {
		a.notifyError(domain.ErrorCodeVoiceDisabled, err)
	}
	return err
}

func (a *App) notifyError(code domain.ErrorCode, err error) {
	a.Notify(domain.Notification{
		Title:       errorMessage(code),
		Description: err.Error(),
		Code:        code,
		Error:       true,
	})
}

// InterviewChanged emits interview snapshots to the frontend.
func (a *App) InterviewChanged(state domain.InterviewState) {
	a.emit(eventInterview, state)
}

// ChatChanged emits the chat surface.
func (a *App) ChatChanged(view domain.ChatView) {
	a.emit(eventChat, view)
}

func (a *App) RecognitionChanged(status domain.RecognitionStatus) {
	a.emit(eventRecognition, status)
}

func (a *App) SpeakingChanged(speaking bool) {
	a.emit(eventSpeaking, map[string]bool{"speaking": speaking})
}

func (a *App) CallStatusChanged(active bool) {
	a.emit(eventCall, map[string]bool{"active": active})
}

func (a *App) UserChanged(user *domain.User) {
	a.emit(eventUser, user)
}

// Notify emits a toast.
func (a *App) Notify(n domain.Notification) {
	if n.Error {
		log.Warn().Str("code", string(n.Code)).Str("title", n.Title).Msg(n.Description)
	}
	a.emit(eventNotify, n)
}

func (a *App) emit(name string, payload any) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, name, payload)
}

func errorMessage(code domain.ErrorCode) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeSessionStart:
		return "Could not start the interview"
	case domain.ErrorCodeSessionAnswer:
		return "Could not submit your answer"
	case domain.ErrorCodeSessionEnd:
		return "Could not finish the interview"
	case domain.ErrorCodeAuth:
		return "Authentication failed"
	case domain.ErrorCodeClipboard:
		return "Clipboard write failed"
	case domain.ErrorCodeVoiceDisabled:
		return "Voice unavailable"
	case domain.ErrorCodeRequestPending:
		return "Please wait"
	default:
		return fmt.Sprintf("Error (%s)", code)
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
