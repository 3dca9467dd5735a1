package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Digital-Shane/sort-me-down/internal/config"
	"gopkg.in/vansante/go-ffprobe.v2"
)

func TestStableMovable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "growing.mkv")
	writeFile(t, path, "part")

	tests := []struct {
		name  string
		sleep func(time.Duration)
		want  bool
	}{
		{"unchanged", func(time.Duration) {}, true},
		{"still growing", func(time.Duration) {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
			if err != nil {
				t.Fatal(err)
			}
			f.WriteString("more")
			f.Close()
		}, false},
		{"removed meanwhile", func(time.Duration) { os.Remove(path) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := StableMovable{Window: time.Second, sleep: tt.sleep}
			if got := m.IsMovable(path); got != tt.want {
				t.Errorf("IsMovable() = %v, want %v", got, tt.want)
			}
		})
	}

	if (StableMovable{sleep: func(time.Duration) {}}).IsMovable(filepath.Join(t.TempDir(), "missing")) {
		t.Error("IsMovable() = true for a missing file")
	}
}

func TestProbeMovable(t *testing.T) {
	video := &ffprobe.ProbeData{Streams: []*ffprobe.Stream{{CodecType: string(ffprobe.StreamVideo)}}}
	audio := &ffprobe.ProbeData{Streams: []*ffprobe.Stream{{CodecType: string(ffprobe.StreamAudio)}}}

	tests := []struct {
		name string
		data *ffprobe.ProbeData
		err  error
		want bool
	}{
		{"video stream", video, nil, true},
		{"audio only", audio, nil, false},
		{"probe failed", nil, errors.New("moov atom not found"), false},
		{"no data", nil, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			p := &ProbeMovable{probe: func(ctx context.Context, path string, _ ...string) (*ffprobe.ProbeData, error) {
				gotPath = path
				if _, ok := ctx.Deadline(); !ok {
					t.Error("probe called without a deadline")
				}
				return tt.data, tt.err
			}}
			if got := p.IsMovable("/src/movie.mkv"); got != tt.want {
				t.Errorf("IsMovable() = %v, want %v", got, tt.want)
			}
			if gotPath != "/src/movie.mkv" {
				t.Errorf("probe path = %q", gotPath)
			}
		})
	}
}

func TestNewMovable(t *testing.T) {
	if _, ok := NewMovable(config.MovableOSLock, 0).(OSLockMovable); !ok {
		t.Error("oslock did not yield OSLockMovable")
	}
	if m, ok := NewMovable(config.MovableStable, 3*time.Second).(StableMovable); !ok || m.Window != 3*time.Second {
		t.Errorf("stable yielded %#v", m)
	}
	if _, ok := NewMovable(config.MovableProbe, 0).(*ProbeMovable); !ok {
		t.Error("probe did not yield *ProbeMovable")
	}
	if !(OSLockMovable{}).IsMovable("/anything") {
		t.Error("OSLockMovable refused a file")
	}
}
