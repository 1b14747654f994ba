package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the interview client.
type Config struct {
	Backend     BackendConfig
	Deepgram    DeepgramConfig
	Audio       AudioConfig
	Vocabulary  VocabularyConfig
	Recognition RecognitionConfig
	Speech      SpeechConfig
	Chat        ChatConfig
	Credentials CredentialsConfig
	Topics      TopicsConfig
	Log         LogConfig
}

type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	KeepAlive   time.Duration
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
	ChunkSize       int
	StreamingGrace  time.Duration
}

// VocabularyConfig points at the dictation correction rules.
type VocabularyConfig struct {
	Path           string
	IterationLimit int
}

type RecognitionConfig struct {
	RestartDelay     time.Duration
	LivenessInterval time.Duration
	NoSpeechTimeout  time.Duration
}

type SpeechConfig struct {
	CartesiaAPIKey  string
	CartesiaBaseURL string
	Model           string
	VoiceID         string
	Language        string
	SampleRate      int
	Rate            float64
	Pitch           float64
	Volume          float64
}

type ChatConfig struct {
	TypewriterInterval time.Duration
	MarkdownStyle      string
}

type CredentialsConfig struct {
	Path string
}

type TopicsConfig struct {
	Path string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Load resolves configuration from the environment, an optional .env file and
// sensible defaults. Variables already set in the environment win over .env.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "interviewmic")

	vocabularyPath := strings.TrimSpace(os.Getenv("INTERVIEWMIC_VOCABULARY_FILE"))
	if vocabularyPath == "" {
		vocabularyPath = firstExisting(
			filepath.Join(configDir, "vocabulary.rules"),
			filepath.Join(home, ".interviewmic", "vocabulary.rules"),
		)
	}

	cfg := Config{
		Backend: BackendConfig{
			BaseURL: envOrDefault("INTERVIEWMIC_API_BASE", "http://localhost:8080/api"),
			Timeout: envOrDefaultMillis("INTERVIEWMIC_API_TIMEOUT_MS", 30*time.Second),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    envOrDefault("DEEPGRAM_LANGUAGE", "en-US"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			KeepAlive:   envOrDefaultMillis("DEEPGRAM_KEEPALIVE_MS", 5*time.Second),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("INTERVIEWMIC_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("INTERVIEWMIC_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: firstNonEmpty(
				os.Getenv("INTERVIEWMIC_AUDIO_INPUT_DEVICE"),
				os.Getenv("DEEPGRAM_PULSE_SOURCE"),
				"default",
			),
			SampleRate:     envOrDefaultInt("INTERVIEWMIC_SAMPLE_RATE", 16000),
			Channels:       envOrDefaultInt("INTERVIEWMIC_CHANNELS", 1),
			ChunkSize:      envOrDefaultInt("INTERVIEWMIC_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: envOrDefaultMillis("INTERVIEWMIC_STREAMING_GRACE_MS", time.Second),
		},
		Vocabulary: VocabularyConfig{
			Path:           vocabularyPath,
			IterationLimit: envOrDefaultInt("INTERVIEWMIC_VOCABULARY_ITERATION_LIMIT", 30),
		},
		Recognition: RecognitionConfig{
			RestartDelay:     envOrDefaultMillis("INTERVIEWMIC_RESTART_DELAY_MS", 300*time.Millisecond),
			LivenessInterval: envOrDefaultMillis("INTERVIEWMIC_LIVENESS_INTERVAL_MS", 2*time.Second),
			NoSpeechTimeout:  envOrDefaultMillis("INTERVIEWMIC_NO_SPEECH_TIMEOUT_MS", 8*time.Second),
		},
		Speech: SpeechConfig{
			CartesiaAPIKey:  strings.TrimSpace(os.Getenv("CARTESIA_API_KEY")),
			CartesiaBaseURL: envOrDefault("CARTESIA_API_BASE", "https://api.cartesia.ai"),
			Model:           envOrDefault("CARTESIA_MODEL", "sonic-2"),
			VoiceID:         strings.TrimSpace(os.Getenv("CARTESIA_VOICE_ID")),
			Language:        envOrDefault("INTERVIEWMIC_SPEECH_LANGUAGE", "en-US"),
			SampleRate:      envOrDefaultInt("INTERVIEWMIC_SPEECH_SAMPLE_RATE", 24000),
			Rate:            envOrDefaultFloat("INTERVIEWMIC_SPEECH_RATE", 1),
			Pitch:           envOrDefaultFloat("INTERVIEWMIC_SPEECH_PITCH", 1),
			Volume:          envOrDefaultFloat("INTERVIEWMIC_SPEECH_VOLUME", 1),
		},
		Chat: ChatConfig{
			TypewriterInterval: envOrDefaultMillis("INTERVIEWMIC_TYPEWRITER_MS", 25*time.Millisecond),
			MarkdownStyle:      envOrDefault("INTERVIEWMIC_CODE_STYLE", "github"),
		},
		Credentials: CredentialsConfig{
			Path: envOrDefault("INTERVIEWMIC_CREDENTIALS_FILE", filepath.Join(configDir, "credentials.json")),
		},
		Topics: TopicsConfig{
			Path: strings.TrimSpace(os.Getenv("INTERVIEWMIC_TOPICS_FILE")),
		},
		Log: LogConfig{
			Level:  envOrDefault("INTERVIEWMIC_LOG_LEVEL", "info"),
			Pretty: envOrDefaultBool("INTERVIEWMIC_LOG_PRETTY", true),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Vocabulary.IterationLimit <= 0 {
		cfg.Vocabulary.IterationLimit = 30
	}
	if cfg.Speech.SampleRate <= 0 {
		cfg.Speech.SampleRate = 24000
	}

	return cfg, nil
}

// loadDotEnv reads INTERVIEWMIC_ENV_FILE, or ./.env when present.
func loadDotEnv() error {
	path := strings.TrimSpace(os.Getenv("INTERVIEWMIC_ENV_FILE"))
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// envOrDefaultMillis reads a non-negative millisecond count.
func envOrDefaultMillis(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
