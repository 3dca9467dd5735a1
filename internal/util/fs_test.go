package util

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "b.mkv")
	if err := os.WriteFile(src, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	n, err := Move(src, dst)
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if n != 5 {
		t.Errorf("Move() bytes = %d, want 5", n)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Errorf("source still present after Move()")
	}
}

func TestMoveRefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "b.mkv")
	os.WriteFile(src, []byte("new"), 0644)
	os.WriteFile(dst, []byte("old"), 0644)

	if _, err := Move(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("Move() error = %v, want fs.ErrExist", err)
	}
	data, _ := os.ReadFile(dst)
	if string(data) != "old" {
		t.Errorf("destination overwritten: %q", data)
	}
}

func TestMoveDestinationAppearsDuringMove(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.mkv")
	dst := filepath.Join(dir, "b.mkv")
	os.WriteFile(src, []byte("new"), 0644)

	orig := link
	t.Cleanup(func() { link = orig })
	link = func(oldname, newname string) error {
		// Another writer wins the race for the destination name
		if err := os.WriteFile(newname, []byte("racer"), 0644); err != nil {
			return err
		}
		return orig(oldname, newname)
	}

	if _, err := Move(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("Move() error = %v, want fs.ErrExist", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "racer" {
		t.Errorf("destination overwritten: %q", data)
	}
	if data, _ := os.ReadFile(src); string(data) != "new" {
		t.Errorf("source lost: %q", data)
	}
}

func TestMoveWithoutHardLinks(t *testing.T) {
	orig := link
	t.Cleanup(func() { link = orig })
	link = func(string, string) error {
		return &os.LinkError{Op: "link", Err: errors.ErrUnsupported}
	}

	tests := []struct {
		name     string
		existing bool
		wantErr  error
	}{
		{"renames", false, nil},
		{"refuses existing", true, fs.ErrExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "a.mkv")
			dst := filepath.Join(dir, "b.mkv")
			os.WriteFile(src, []byte("video"), 0644)
			if tt.existing {
				os.WriteFile(dst, []byte("old"), 0644)
			}

			n, err := Move(src, dst)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Move() error = %v, want %v", err, tt.wantErr)
				}
				if data, _ := os.ReadFile(dst); string(data) != "old" {
					t.Errorf("destination overwritten: %q", data)
				}
				return
			}
			if err != nil || n != 5 {
				t.Fatalf("Move() = %d, %v; want 5, nil", n, err)
			}
			if _, err := os.Stat(src); !os.IsNotExist(err) {
				t.Error("source still present after Move()")
			}
		})
	}
}

func TestMoveMissingSource(t *testing.T) {
	dir := t.TempDir()
	_, err := Move(filepath.Join(dir, "nope"), filepath.Join(dir, "dst"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Move() error = %v, want fs.ErrNotExist", err)
	}
}

func TestMissingDirs(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "a", "b", "c")

	want := []string{filepath.Join(root, "a"), filepath.Join(root, "a", "b"), target}
	if diff := cmp.Diff(want, MissingDirs(target)); diff != "" {
		t.Errorf("MissingDirs() mismatch (-want +got):\n%s", diff)
	}
	if got := MissingDirs(root); len(got) != 0 {
		t.Errorf("MissingDirs(existing) = %v, want empty", got)
	}
}

func TestIsEmptyDir(t *testing.T) {
	root := t.TempDir()
	empty, err := IsEmptyDir(root)
	if err != nil || !empty {
		t.Fatalf("IsEmptyDir(empty) = %v, %v", empty, err)
	}
	os.WriteFile(filepath.Join(root, "f"), nil, 0644)
	if empty, _ := IsEmptyDir(root); empty {
		t.Error("IsEmptyDir(non-empty) = true")
	}
}
