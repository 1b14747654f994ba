package bootstrap

import (
	"net/http"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"interviewmic/internal/audio"
	"interviewmic/internal/backend"
	"interviewmic/internal/config"
	"interviewmic/internal/credentials"
	"interviewmic/internal/logging"
	"interviewmic/internal/markdown"
	"interviewmic/internal/ports"
	"interviewmic/internal/providers/cartesia"
	"interviewmic/internal/providers/deepgram"
	"interviewmic/internal/topics"
	"interviewmic/internal/usecase"
	"interviewmic/internal/vocabulary"
	"interviewmic/internal/voice"
)

// Services is the assembled runtime graph.
type Services struct {
	Config    config.Config
	Topics    *topics.Catalog
	Interview *usecase.InterviewController
	Chat      *usecase.ChatController
	Auth      *usecase.AuthSession
}

// Build wires all backend dependencies for the current runtime. Voice input
// and output are optional: without credentials or a recorder the chat runs in
// text mode.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	logging.Init(cfg.Log)

	catalog, err := loadTopics(cfg.Topics.Path)
	if err != nil {
		return Services{}, err
	}

	recognizer, err := buildRecognizer(cfg)
	if err != nil {
		return Services{}, err
	}

	client := backend.New(cfg.Backend.BaseURL, &http.Client{Timeout: cfg.Backend.Timeout})
	sched := usecase.NewRealScheduler()

	interview := usecase.NewInterviewController(client, eventSink)
	recognition := usecase.NewRecognitionController(recognizer, sched, eventSink, usecase.RecognitionConfig{
		Recognizer: ports.RecognitionConfig{
			Language:       cfg.Deepgram.Language,
			Continuous:     true,
			InterimResults: true,
		},
		RestartDelay:     cfg.Recognition.RestartDelay,
		LivenessInterval: cfg.Recognition.LivenessInterval,
	})
	synthesis := usecase.NewSynthesisController(buildSpeechEngine(cfg), eventSink, usecase.SynthesisConfig{
		Language: cfg.Speech.Language,
		Rate:     cfg.Speech.Rate,
		Pitch:    cfg.Speech.Pitch,
		Volume:   cfg.Speech.Volume,
	})
	chat := usecase.NewChatController(
		interview,
		recognition,
		synthesis,
		sched,
		eventSink,
		markdown.NewRenderer(cfg.Chat.MarkdownStyle),
		usecase.ChatConfig{TypewriterInterval: cfg.Chat.TypewriterInterval},
	)
	auth := usecase.NewAuthSession(client, credentials.NewFileStore(cfg.Credentials.Path), eventSink)

	return Services{
		Config:    cfg,
		Topics:    catalog,
		Interview: interview,
		Chat:      chat,
		Auth:      auth,
	}, nil
}

func loadTopics(path string) (*topics.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return topics.Default(), nil
	}
	return topics.Load(path)
}

// buildRecognizer returns nil when speech input cannot work on this machine.
func buildRecognizer(cfg config.Config) (ports.RecognitionProvider, error) {
	if cfg.Deepgram.APIKey == "" {
		log.Info().Msg("DEEPGRAM_API_KEY not set, voice input disabled")
		return nil, nil
	}
	if _, err := exec.LookPath(cfg.Audio.RecorderCommand); err != nil {
		log.Warn().Err(err).Str("command", cfg.Audio.RecorderCommand).Msg("recorder not found, voice input disabled")
		return nil, nil
	}

	corrector, err := vocabulary.Load(cfg.Vocabulary.Path, cfg.Vocabulary.IterationLimit)
	if err != nil {
		return nil, err
	}
	if corrector.Len() > 0 {
		log.Info().Int("rules", corrector.Len()).Str("path", cfg.Vocabulary.Path).Msg("vocabulary rules loaded")
	}

	transcriber := deepgram.NewProvider(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
		KeepAlive:   cfg.Deepgram.KeepAlive,
	})
	return voice.NewRecognizer(audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand), transcriber, corrector, voice.RecognizerConfig{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		ChunkSize:       cfg.Audio.ChunkSize,
		StreamingGrace:  cfg.Audio.StreamingGrace,
		NoSpeechTimeout: cfg.Recognition.NoSpeechTimeout,
	}), nil
}

// buildSpeechEngine returns nil when no TTS voice is configured.
func buildSpeechEngine(cfg config.Config) ports.SpeechEngine {
	if cfg.Speech.CartesiaAPIKey == "" || cfg.Speech.VoiceID == "" {
		log.Info().Msg("CARTESIA_API_KEY or CARTESIA_VOICE_ID not set, spoken replies disabled")
		return nil
	}
	synth := cartesia.NewClient(cartesia.Config{
		APIKey:     cfg.Speech.CartesiaAPIKey,
		BaseURL:    cfg.Speech.CartesiaBaseURL,
		Model:      cfg.Speech.Model,
		VoiceID:    cfg.Speech.VoiceID,
		SampleRate: cfg.Speech.SampleRate,
	})
	return voice.NewSpeaker(synth, audio.NewOtoPlayer(synth.SampleRate(), 1))
}
