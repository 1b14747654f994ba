package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
	"interviewmic/internal/ports"
)

var (
	ErrNoActiveSession = errors.New("no active interview session")
	ErrRequestInFlight = errors.New("another interview request is still in flight")
)

const (
	defaultQuestionDifficulty = domain.DifficultyMedium
	defaultQuestionMinutes    = 5
)

// InterviewController owns the interview session state. Every mutation comes
// from a backend response, and at most one backend call runs at a time.
type InterviewController struct {
	api    ports.SessionAPI
	events ports.EventSink
	now    func() time.Time

	mu         sync.Mutex
	state      domain.InterviewState
	inFlight   bool
	epoch      int
	questionAt time.Time
}

func NewInterviewController(api ports.SessionAPI, events ports.EventSink) *InterviewController {
	return &InterviewController{
		api:    api,
		events: events,
		now:    time.Now,
		state:  domain.InterviewState{Phase: domain.PhaseTopicSelection},
	}
}

// State returns a snapshot that shares nothing with the controller.
func (c *InterviewController) State() domain.InterviewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Start opens a new session for topic. kind is optional.
func (c *InterviewController) Start(ctx context.Context, topic string, kind string) error {
	epoch, _, err := c.begin(sessionNone)
	if err != nil {
		return err
	}

	result, err := c.api.StartSession(ctx, topic, kind)
	if err != nil {
		c.finish(epoch, nil)
		c.fail(domain.ErrorCodeSessionStart, "Could not start interview.", err)
		return err
	}

	sessionTopic := result.Topic
	if sessionTopic == "" {
		sessionTopic = topic
	}
	applied := c.finish(epoch, func() {
		startedAt := result.StartedAt
		if startedAt.IsZero() {
			startedAt = c.now()
		}
		c.state.Session = &domain.InterviewSession{
			ID:        result.SessionID,
			Topic:     sessionTopic,
			StartTime: startedAt,
			Status:    domain.SessionStatusInProgress,
			Questions: []domain.Question{newQuestion(1, result.CurrentQuestion, sessionTopic)},
			Answers:   []domain.Answer{},
			Feedback:  []domain.Feedback{},
		}
		c.state.Phase = domain.PhaseInterview
		c.questionAt = c.now()
	})
	if !applied {
		return nil
	}

	c.events.Notify(domain.Notification{
		Title:       "Interview Started",
		Description: fmt.Sprintf("Your %s interview has begun. Good luck!", sessionTopic),
	})
	return nil
}

// SubmitAnswer sends text as the answer to the current question. The raw
// result is returned so callers can use fields the session does not model.
func (c *InterviewController) SubmitAnswer(ctx context.Context, text string) (*ports.AnswerResult, error) {
	epoch, sessionID, err := c.begin(sessionOpen)
	if err != nil {
		return nil, err
	}

	result, err := c.api.SubmitAnswer(ctx, sessionID, text)
	if err != nil {
		c.finish(epoch, nil)
		c.fail(domain.ErrorCodeSessionAnswer, "Could not submit answer.", err)
		return nil, err
	}

	applied := c.finish(epoch, func() {
		c.applyAnswerLocked(text, result)
	})
	if !applied {
		return nil, fmt.Errorf("%w: session was reset while the answer was pending", ErrNoActiveSession)
	}
	return &result, nil
}

// EndInterview asks the backend for the summary and moves to the summary phase.
func (c *InterviewController) EndInterview(ctx context.Context) error {
	epoch, sessionID, err := c.begin(sessionAny)
	if err != nil {
		return err
	}

	result, err := c.api.EndSession(ctx, sessionID)
	if err != nil {
		c.finish(epoch, nil)
		c.fail(domain.ErrorCodeSessionEnd, "Could not end interview.", err)
		return err
	}

	applied := c.finish(epoch, func() {
		session := c.state.Session
		session.OverallScore = result.OverallScore
		session.Summary = result.Summary
		session.SummaryStrengths = nonNil(result.SummaryStrengths)
		session.SummaryImprovements = nonNil(result.SummaryImprovements)
		session.Feedback = c.mapFeedbackLocked(result.Feedback, 0)
		session.Status = domain.SessionStatusCompleted
		ended := result.EndedAt
		if ended.IsZero() {
			ended = c.now()
		}
		session.EndTime = &ended
		c.state.Phase = domain.PhaseSummary
	})
	if applied {
		c.events.Notify(domain.Notification{
			Title:       "Interview Completed",
			Description: "Thank you for completing the interview. Review your feedback below.",
		})
	}
	return nil
}

// Reset drops the session and returns to topic selection. A request still in
// flight is discarded when it returns.
func (c *InterviewController) Reset() {
	c.mu.Lock()
	c.epoch++
	c.inFlight = false
	c.state = domain.InterviewState{Phase: domain.PhaseTopicSelection}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.events.InterviewChanged(snapshot)
}

func (c *InterviewController) SetRecording(recording bool) {
	c.update(func() bool {
		if c.state.Recording == recording {
			return false
		}
		c.state.Recording = recording
		return true
	})
}

func (c *InterviewController) SetAvatarSpeaking(speaking bool) {
	c.update(func() bool {
		if c.state.AvatarSpeaking == speaking {
			return false
		}
		c.state.AvatarSpeaking = speaking
		return true
	})
}

func (c *InterviewController) update(mutate func() bool) {
	c.mu.Lock()
	if !mutate() {
		c.mu.Unlock()
		return
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.InterviewChanged(snapshot)
}

type sessionRequirement int

const (
	sessionNone sessionRequirement = iota
	sessionAny
	sessionOpen
)

// begin claims the single request slot. When a session is required its id is
// returned, read under the same lock as the epoch.
func (c *InterviewController) begin(need sessionRequirement) (int, string, error) {
	c.mu.Lock()
	var sessionID string
	if need != sessionNone {
		session := c.state.Session
		if session == nil || (need == sessionOpen && session.Status != domain.SessionStatusInProgress) {
			c.mu.Unlock()
			return 0, "", ErrNoActiveSession
		}
		sessionID = session.ID
	}
	if c.inFlight {
		c.mu.Unlock()
		return 0, "", ErrRequestInFlight
	}
	c.inFlight = true
	c.state.Loading = true
	epoch := c.epoch
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.events.InterviewChanged(snapshot)
	return epoch, sessionID, nil
}

// finish clears the in-flight flag and applies mutate unless a reset happened
// while the request was outstanding.
func (c *InterviewController) finish(epoch int, mutate func()) bool {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return false
	}
	c.inFlight = false
	c.state.Loading = false
	if mutate != nil {
		mutate()
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.events.InterviewChanged(snapshot)
	return true
}

func (c *InterviewController) fail(code domain.ErrorCode, description string, err error) {
	log.Warn().Err(err).Str("code", string(code)).Msg("interview request failed")
	c.events.Notify(domain.Notification{
		Title:       "Error",
		Description: description,
		Code:        code,
		Error:       true,
	})
}

func (c *InterviewController) applyAnswerLocked(text string, result ports.AnswerResult) {
	session := c.state.Session
	now := c.now()

	questionID := ""
	if question, ok := session.CurrentQuestion(); ok {
		questionID = question.ID
	}
	duration := 0
	if !c.questionAt.IsZero() {
		duration = int(math.Round(now.Sub(c.questionAt).Seconds()))
	}
	session.Answers = append(session.Answers, domain.Answer{
		ID:         uuid.NewString(),
		QuestionID: questionID,
		Text:       text,
		Timestamp:  now,
		Duration:   duration,
	})
	session.Feedback = append(session.Feedback, c.mapFeedbackLocked(result.Feedback, len(session.Feedback))...)

	if !result.HasNextQuestion {
		session.Status = domain.SessionStatusCompleted
		session.EndTime = &now
		c.state.Phase = domain.PhaseSummary
		return
	}

	session.Questions = append(session.Questions, newQuestion(len(session.Questions)+1, result.NextQuestion, session.Topic))
	session.CurrentQuestionIndex++
	c.state.Phase = domain.PhaseInterview
	c.questionAt = now
}

// mapFeedbackLocked converts backend records; offset is the index of the
// first record within the session feedback list.
func (c *InterviewController) mapFeedbackLocked(records []ports.FeedbackRecord, offset int) []domain.Feedback {
	out := make([]domain.Feedback, 0, len(records))
	for i, record := range records {
		var fb domain.Feedback
		if err := copier.Copy(&fb, &record); err != nil {
			log.Warn().Err(err).Msg("feedback record could not be mapped")
			continue
		}
		fb.ID = uuid.NewString()
		fb.Strengths = nonNil(fb.Strengths)
		fb.Improvements = nonNil(fb.Improvements)
		fb.OverallRating = domain.RatingForScore(fb.Score)
		if idx := offset + i; idx < len(c.state.Session.Answers) {
			fb.AnswerID = c.state.Session.Answers[idx].ID
		}
		out = append(out, fb)
	}
	return out
}

func (c *InterviewController) snapshotLocked() domain.InterviewState {
	out := c.state
	out.Session = c.state.Session.Clone()
	return out
}

func newQuestion(number int, text string, topic string) domain.Question {
	return domain.Question{
		ID:               strconv.Itoa(number),
		Text:             text,
		Topic:            topic,
		Difficulty:       defaultQuestionDifficulty,
		ExpectedDuration: defaultQuestionMinutes,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// SummaryText renders a finished session as plain text.
func SummaryText(session *domain.InterviewSession) string {
	if session == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Interview summary: %s\n", session.Topic)
	if session.OverallScore != nil {
		fmt.Fprintf(&b, "Overall score: %.1f/10 (%s)\n", *session.OverallScore, domain.RatingForScore(*session.OverallScore))
	}
	if session.Summary != "" {
		fmt.Fprintf(&b, "\n%s\n", session.Summary)
	}
	writeList(&b, "Strengths", session.SummaryStrengths)
	writeList(&b, "Areas to improve", session.SummaryImprovements)

	for i, question := range session.Questions {
		fmt.Fprintf(&b, "\nQ%d. %s\n", i+1, question.Text)
		if i < len(session.Answers) {
			fmt.Fprintf(&b, "Answer: %s\n", session.Answers[i].Text)
		}
		if i < len(session.Feedback) {
			fb := session.Feedback[i]
			fmt.Fprintf(&b, "Score: %.1f (%s)\n", fb.Score, fb.OverallRating)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
