// Package audio implements the single background actor that owns the
// vehicle's audio output sink: one goroutine serializes play/pause/resume/
// stop commands sent over a bounded channel (spec §5 backpressure: capacity
// 32, senders await), mirroring the runtime's pattern of isolating a single
// exclusively-owned resource behind a command-processing goroutine.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/drivevox/validator/errs"
)

// Player decodes and plays one audio file to completion or until Stop is
// called. Concrete implementations wrap a platform audio SDK; Controller
// depends only on this interface.
type Player interface {
	Play(ctx context.Context, path string) error
	Stop()
}

type commandKind int

const (
	cmdPlay commandKind = iota
	cmdPause
	cmdResume
	cmdStop
)

type command struct {
	kind   commandKind
	path   string
	result chan error
}

// Controller serializes access to a Player through a bounded command
// channel so at most one clip plays at a time; a new play command stops
// whatever is currently playing.
type Controller struct {
	player Player
	cmds   chan command

	mu      sync.Mutex
	playing bool

	closeOnce sync.Once
	done      chan struct{}
}

// NewController starts the actor goroutine and returns a ready Controller.
func NewController(player Player) *Controller {
	c := &Controller{
		player: player,
		cmds:   make(chan command, 32),
		done:   make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Controller) loop() {
	for cmd := range c.cmds {
		switch cmd.kind {
		case cmdPlay:
			c.mu.Lock()
			c.playing = true
			c.mu.Unlock()
			err := c.player.Play(context.Background(), cmd.path)
			c.mu.Lock()
			c.playing = false
			c.mu.Unlock()
			cmd.result <- err
		case cmdStop:
			c.player.Stop()
			cmd.result <- nil
		case cmdPause, cmdResume:
			// Pause/Resume are advisory to the underlying sink; the default
			// Player contract only guarantees Play/Stop, so these are no-ops
			// unless the concrete Player also implements pausing.
			if p, ok := c.player.(interface{ Pause() }); ok && cmd.kind == cmdPause {
				p.Pause()
			}
			if p, ok := c.player.(interface{ Resume() }); ok && cmd.kind == cmdResume {
				p.Resume()
			}
			cmd.result <- nil
		}
	}
	close(c.done)
}

// ResolveFile finds the first file in dir (directory-iteration order) whose
// name contains keyword. Returns errs.NotFound if dir is missing or no entry
// matches.
func ResolveFile(dir, keyword string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, fmt.Sprintf("audio directory %q", dir), err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.Contains(e.Name(), keyword) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", errs.New(errs.NotFound, fmt.Sprintf("no audio file containing %q in %q", keyword, dir))
}

// Play stops any current playback and plays path to completion, returning
// once playback finishes, fails, or ctx is cancelled.
func (c *Controller) Play(ctx context.Context, path string) error {
	res := make(chan error, 1)
	select {
	case c.cmds <- command{kind: cmdStop, result: make(chan error, 1)}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case c.cmds <- command{kind: cmdPlay, path: path, result: res}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-res:
		return err
	case <-ctx.Done():
		c.Stop()
		return ctx.Err()
	}
}

// Stop halts any current playback; it is safe to call when nothing is playing.
func (c *Controller) Stop() {
	res := make(chan error, 1)
	c.cmds <- command{kind: cmdStop, result: res}
	<-res
}

// Pause requests the underlying sink pause, if it supports pausing.
func (c *Controller) Pause() {
	res := make(chan error, 1)
	c.cmds <- command{kind: cmdPause, result: res}
	<-res
}

// Resume requests the underlying sink resume, if it supports pausing.
func (c *Controller) Resume() {
	res := make(chan error, 1)
	c.cmds <- command{kind: cmdResume, result: res}
	<-res
}

// IsPlaying reports whether a clip is currently playing.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Close stops accepting commands and waits for the actor goroutine to exit.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.cmds) })
	<-c.done
}
