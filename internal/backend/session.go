package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jinzhu/copier"

	"interviewmic/internal/ports"
)

var _ ports.SessionAPI = (*Client)(nil)

func (c *Client) StartSession(ctx context.Context, topic string, kind string) (ports.StartResult, error) {
	req := startRequest{Topic: strings.TrimSpace(topic), Type: strings.TrimSpace(kind)}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/session/start", "", req, &resp); err != nil {
		return ports.StartResult{}, err
	}

	if resp.SessionID == "" {
		return ports.StartResult{}, fmt.Errorf("%w: missing sessionId", ErrInvalidResponse)
	}
	question := resp.question()
	if question == "" {
		return ports.StartResult{}, fmt.Errorf("%w: missing first question", ErrInvalidResponse)
	}

	return ports.StartResult{
		SessionID:       string(resp.SessionID),
		Topic:           resp.Topic,
		StartedAt:       resp.StartedAt.Time,
		CurrentQuestion: question,
	}, nil
}

func (c *Client) SubmitAnswer(ctx context.Context, id string, answer string) (ports.AnswerResult, error) {
	req := answerRequest{SessionID: sessionID(id), Answer: answer}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/session/answer", "", req, &resp); err != nil {
		return ports.AnswerResult{}, err
	}

	records, err := mapFeedback(resp.Feedback.Records)
	if err != nil {
		return ports.AnswerResult{}, err
	}
	question := resp.question()
	return ports.AnswerResult{
		NextQuestion:    question,
		HasNextQuestion: question != "",
		Feedback:        records,
		FeedbackText:    resp.feedbackText(),
	}, nil
}

func (c *Client) EndSession(ctx context.Context, id string) (ports.EndResult, error) {
	req := endRequest{SessionID: sessionID(id)}
	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/session/end", "", req, &resp); err != nil {
		return ports.EndResult{}, err
	}

	records, err := mapFeedback(resp.Feedback.Records)
	if err != nil {
		return ports.EndResult{}, err
	}
	summary := strings.TrimSpace(resp.Summary)
	if summary == "" {
		summary = resp.feedbackText()
	}
	return ports.EndResult{
		OverallScore:        resp.OverallScore,
		Summary:             summary,
		SummaryStrengths:    nonNil(resp.SummaryStrengths),
		SummaryImprovements: nonNil(resp.SummaryImprovements),
		Feedback:            records,
		EndedAt:             resp.EndedAt.Time,
	}, nil
}

func mapFeedback(records []wireFeedbackRecord) ([]ports.FeedbackRecord, error) {
	out := make([]ports.FeedbackRecord, 0, len(records))
	if len(records) == 0 {
		return out, nil
	}
	if err := copier.Copy(&out, &records); err != nil {
		return nil, fmt.Errorf("%w: feedback: %v", ErrInvalidResponse, err)
	}
	for i := range out {
		out[i].Strengths = nonNil(out[i].Strengths)
		out[i].Improvements = nonNil(out[i].Improvements)
	}
	return out, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
