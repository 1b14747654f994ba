package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func TestOtoPlayerPlaysUntilDrained(t *testing.T) {
	t.Parallel()

	fake := &fakePCMPlayer{remaining: 3}
	p := newTestPlayer(fake)

	if err := p.Play(context.Background(), []byte{1, 2, 3, 4}, 0.5); err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if !fake.started() || !fake.closed() {
		t.Fatalf("expected player to be started and closed")
	}
	if got := fake.volume(); got != 0.5 {
		t.Fatalf("unexpected volume: %v", got)
	}
}

func TestOtoPlayerStopsOnCancel(t *testing.T) {
	t.Parallel()

	fake := &fakePCMPlayer{remaining: -1}
	p := newTestPlayer(fake)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Play(ctx, []byte{1, 2}, 1) }()

	time.Sleep(3 * pollInterval)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("play did not stop after cancel")
	}
	if !fake.paused() || !fake.closed() {
		t.Fatalf("expected player to be paused and closed")
	}
}

func TestOtoPlayerSkipsEmptyAudio(t *testing.T) {
	t.Parallel()

	p := NewOtoPlayer(0, 0)
	if err := p.Play(context.Background(), nil, 1); err != nil {
		t.Fatalf("empty audio should be a no-op, got %v", err)
	}
	if p.SampleRate() != 24000 {
		t.Fatalf("unexpected default sample rate: %d", p.SampleRate())
	}
}

func newTestPlayer(fake *fakePCMPlayer) *OtoPlayer {
	p := NewOtoPlayer(16000, 1)
	p.newPlayer = func(io.Reader) pcmPlayer { return fake }
	return p
}

type fakePCMPlayer struct {
	mu        sync.Mutex
	remaining int
	play      bool
	pause     bool
	close     bool
	vol       float64
}

func (f *fakePCMPlayer) Play() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.play = true
}

func (f *fakePCMPlayer) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pause = true
}

// IsPlaying reports true for the configured number of polls; a negative
// count never drains.
func (f *fakePCMPlayer) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining < 0 {
		return true
	}
	if f.remaining == 0 {
		return false
	}
	f.remaining--
	return true
}

func (f *fakePCMPlayer) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vol = v
}

func (f *fakePCMPlayer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.close = true
	return nil
}

func (f *fakePCMPlayer) started() bool { f.mu.Lock(); defer f.mu.Unlock(); return f.play }
func (f *fakePCMPlayer) paused() bool  { f.mu.Lock(); defer f.mu.Unlock(); return f.pause }
func (f *fakePCMPlayer) closed() bool  { f.mu.Lock(); defer f.mu.Unlock(); return f.close }
func (f *fakePCMPlayer) volume() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vol
}
