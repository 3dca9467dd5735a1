package core

import (
	"context"
	"os"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"gopkg.in/vansante/go-ffprobe.v2"
)

// Movable decides whether a file may be moved right now. The default
// strategy trusts the operating system to refuse moves of files still being
// written; a failed move is retried on the next pass.
type Movable interface {
	IsMovable(path string) bool
}

// MovableFunc adapts a function to Movable.
type MovableFunc func(path string) bool

func (f MovableFunc) IsMovable(path string) bool { return f(path) }

// OSLockMovable always allows the attempt.
type OSLockMovable struct{}

func (OSLockMovable) IsMovable(string) bool { return true }

// StableMovable requires size and modification time to stay unchanged over Window.
type StableMovable struct {
	Window time.Duration
	sleep  func(time.Duration)
}

func (s StableMovable) IsMovable(path string) bool {
	before, err := os.Stat(path)
	if err != nil {
		return false
	}
	sleep := s.sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	sleep(s.Window)
	after, err := os.Stat(path)
	if err != nil {
		return false
	}
	return before.Size() == after.Size() && before.ModTime().Equal(after.ModTime())
}

type probeFunc func(ctx context.Context, path string, extraOpts ...string) (*ffprobe.ProbeData, error)

// ProbeMovable requires ffprobe to read the container and find a video
// stream. Partially written files usually fail to probe.
type ProbeMovable struct {
	Timeout time.Duration
	probe   probeFunc
}

// NewProbeMovable creates a probe gate using the ffprobe binary on PATH.
func NewProbeMovable(timeout time.Duration) *ProbeMovable {
	return &ProbeMovable{Timeout: timeout, probe: ffprobe.ProbeURL}
}

func (p *ProbeMovable) IsMovable(path string) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	data, err := p.probe(ctx, path)
	if err != nil || data == nil {
		return false
	}
	return data.FirstVideoStream() != nil
}

// NewMovable returns the gate named by a movable_check setting.
func NewMovable(check string, stableWindow time.Duration) Movable {
	switch check {
	case config.MovableStable:
		return StableMovable{Window: stableWindow}
	case config.MovableProbe:
		return NewProbeMovable(0)
	default:
		return OSLockMovable{}
	}
}
