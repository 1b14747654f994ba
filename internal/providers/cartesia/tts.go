// Package cartesia synthesizes speech with the Cartesia bytes endpoint.
package cartesia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/domain"
)

const (
	defaultBaseURL = "https://api.cartesia.ai"
	defaultModel   = "sonic-2"
	apiVersion     = "2025-04-16"

	minSpeed = 0.6
	maxSpeed = 1.5

	maxAudioBytes = 32 << 20
)

var ErrMissingVoice = errors.New("CARTESIA_VOICE_ID is not configured")

// Config controls the synthesis request.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	VoiceID    string
	SampleRate int
	HTTPClient *http.Client
}

// Client turns utterances into raw pcm_s16le audio.
type Client struct {
	cfg Config
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{cfg: cfg}
}

func (c *Client) SampleRate() int {
	return c.cfg.SampleRate
}

// Synthesize returns mono PCM at the configured sample rate. Rate maps onto
// Cartesia's speed range; pitch has no Cartesia equivalent and is ignored.
func (c *Client) Synthesize(ctx context.Context, utterance domain.Utterance) ([]byte, error) {
	if strings.TrimSpace(c.cfg.VoiceID) == "" {
		return nil, ErrMissingVoice
	}
	text := strings.TrimSpace(utterance.Text)
	if text == "" {
		return nil, nil
	}

	reqBody := ttsRequest{
		ModelID:    c.cfg.Model,
		Transcript: text,
		Voice:      voiceSpec{Mode: "id", ID: c.cfg.VoiceID},
		OutputFormat: outputFormat{
			Container:  "raw",
			Encoding:   "pcm_s16le",
			SampleRate: c.cfg.SampleRate,
		},
	}
	if lang := languageCode(utterance.Language); lang != "" {
		reqBody.Language = lang
	}
	if speed, ok := speedFor(utterance.Rate); ok {
		reqBody.GenerationConfig = &generationConfig{Speed: speed}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/tts/bytes", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	req.Header.Set("Cartesia-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("cartesia error %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	log.Debug().
		Int("chars", len(text)).
		Int("bytes", len(audio)).
		Dur("elapsed", time.Since(started)).
		Msg("speech synthesized")
	return audio, nil
}

// speedFor maps a speech rate (1 is normal) into Cartesia's accepted range.
func speedFor(rate float64) (float64, bool) {
	if rate <= 0 || rate == 1 {
		return 0, false
	}
	if rate < minSpeed {
		return minSpeed, true
	}
	if rate > maxSpeed {
		return maxSpeed, true
	}
	return rate, true
}

// languageCode turns a locale like "en-US" into the two-letter code Cartesia expects.
func languageCode(locale string) string {
	locale = strings.TrimSpace(locale)
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

type ttsRequest struct {
	ModelID          string            `json:"model_id"`
	Transcript       string            `json:"transcript"`
	Voice            voiceSpec         `json:"voice"`
	OutputFormat     outputFormat      `json:"output_format"`
	Language         string            `json:"language,omitempty"`
	GenerationConfig *generationConfig `json:"generation_config,omitempty"`
}

type voiceSpec struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type outputFormat struct {
	Container  string `json:"container"`
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sample_rate"`
}

type generationConfig struct {
	Speed float64 `json:"speed,omitempty"`
}
