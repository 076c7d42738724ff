package audio_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivevox/validator/audio"
	"github.com/drivevox/validator/errs"
)

type fakePlayer struct {
	played chan string
	delay  time.Duration
	stop   chan struct{}
}

func newFakePlayer(delay time.Duration) *fakePlayer {
	return &fakePlayer{played: make(chan string, 8), delay: delay, stop: make(chan struct{}, 8)}
}

func (p *fakePlayer) Play(ctx context.Context, path string) error {
	p.played <- path
	select {
	case <-time.After(p.delay):
	case <-p.stop:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *fakePlayer) Stop() {
	select {
	case p.stop <- struct{}{}:
	default:
	}
}

func TestControllerPlaysRequestedFile(t *testing.T) {
	player := newFakePlayer(10 * time.Millisecond)
	c := audio.NewController(player)
	defer c.Close()

	require.NoError(t, c.Play(context.Background(), "/tmp/wake.wav"))
	select {
	case got := <-player.played:
		assert.Equal(t, "/tmp/wake.wav", got)
	default:
		t.Fatal("expected player.Play to have been invoked")
	}
}

func TestResolveFileFindsFirstMatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.wav"), []byte{}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wake-keyword.wav"), []byte{}, 0o644))

	path, err := audio.ResolveFile(dir, "keyword")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "wake-keyword.wav"), path)
}

func TestResolveFileMissingDirectory(t *testing.T) {
	_, err := audio.ResolveFile(filepath.Join(t.TempDir(), "missing"), "keyword")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.NotFound))
}
