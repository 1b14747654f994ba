package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const pollInterval = 20 * time.Millisecond

// pcmPlayer is the subset of *oto.Player used for playback.
type pcmPlayer interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(volume float64)
	Close() error
}

// OtoPlayer plays signed 16-bit little endian PCM through the default output
// device. The oto context is created on first use; oto allows only one per
// process.
type OtoPlayer struct {
	sampleRate int
	channels   int

	once      sync.Once
	initErr   error
	newPlayer func(r io.Reader) pcmPlayer

	// one utterance plays at a time
	mu sync.Mutex
}

func NewOtoPlayer(sampleRate int, channels int) *OtoPlayer {
	if sampleRate <= 0 {
		sampleRate = 24000
	}
	if channels <= 0 {
		channels = 1
	}
	return &OtoPlayer{sampleRate: sampleRate, channels: channels}
}

func (p *OtoPlayer) SampleRate() int {
	return p.sampleRate
}

func (p *OtoPlayer) init() error {
	p.once.Do(func() {
		if p.newPlayer != nil {
			return
		}
		otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   p.sampleRate,
			ChannelCount: p.channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			p.initErr = fmt.Errorf("open audio output: %w", err)
			return
		}
		<-ready
		p.newPlayer = func(r io.Reader) pcmPlayer { return otoCtx.NewPlayer(r) }
	})
	return p.initErr
}

// Play blocks until pcm has been played or ctx is done. Cancelling ctx stops
// playback immediately.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte, volume float64) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := p.init(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	player := p.newPlayer(bytes.NewReader(pcm))
	defer func() { _ = player.Close() }()
	if volume > 0 && volume <= 1 {
		player.SetVolume(volume)
	}
	player.Play()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !player.IsPlaying() {
				return nil
			}
		}
	}
}
