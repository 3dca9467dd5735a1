package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	home       string
	configPath string
	source     string
	movies     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		home:   filepath.Join(base, "home"),
		source: filepath.Join(base, "downloads"),
		movies: filepath.Join(base, "Movies"),
	}
	t.Setenv("HOME", env.home)
	env.configPath = filepath.Join(env.home, ".sort-me-down", "config.json")

	// omdb without a key is skipped, so passes never reach the network
	writeCLIFile(t, env.configPath, `{
  "source_dir": "`+env.source+`",
  "movies_dir": "`+env.movies+`",
  "tv_shows_dir": "`+filepath.Join(base, "TV")+`",
  "anime_movies_dir": "`+filepath.Join(base, "AnimeMovies")+`",
  "anime_series_dir": "`+filepath.Join(base, "AnimeSeries")+`",
  "providers": ["omdb"],
  "omdb_api_key": "",
  "request_delay": "0s",
  "retry_delay": "0s"
}`)
	if err := os.MkdirAll(env.source, 0o755); err != nil {
		t.Fatalf("mkdir source: %v", err)
	}
	return env
}

func writeCLIFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("output missing %q:\n%s", needle, haystack)
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCLISortMismatchedForceUndo(t *testing.T) {
	env := setupCLITestEnv(t)
	release := filepath.Join(env.source, "Inception.2010.1080p")
	writeCLIFile(t, filepath.Join(release, "Inception.2010.1080p.mkv"), "movie")
	writeCLIFile(t, filepath.Join(release, "Inception.2010.1080p.srt"), "subs")

	mismatched := filepath.Join(env.source, "_Mismatched", "Inception.2010.1080p.mkv")

	// Dry run plans the fallback move and leaves the tree alone
	out, _, err := runCLI(t, "", "sort", "--dry-run")
	if err != nil {
		t.Fatalf("sort --dry-run: %v", err)
	}
	requireContains(t, out, "dry run")
	if fileExists(mismatched) {
		t.Fatal("dry run moved the file")
	}

	out, _, err = runCLI(t, "", "sort")
	if err != nil {
		t.Fatalf("sort: %v", err)
	}
	requireContains(t, out, "mismatched")
	requireContains(t, out, "Summary")
	if !fileExists(mismatched) {
		t.Fatalf("expected %s after sort", mismatched)
	}
	if fileExists(release) {
		t.Errorf("empty release folder %s was not swept", release)
	}

	out, _, err = runCLI(t, "", "mismatched", "list")
	if err != nil {
		t.Fatalf("mismatched list: %v", err)
	}
	requireContains(t, out, "Inception.2010.1080p.mkv")

	out, _, err = runCLI(t, "", "mismatched", "force", "Inception.2010.1080p.mkv", "--as", "movie")
	if err != nil {
		t.Fatalf("mismatched force: %v", err)
	}
	placed := filepath.Join(env.movies, "Inception (2010)", "Inception (2010).mkv")
	requireContains(t, out, "sorted")
	if !fileExists(placed) {
		t.Fatalf("expected %s after force", placed)
	}

	out, _, err = runCLI(t, "", "undo", "--list")
	if err != nil {
		t.Fatalf("undo --list: %v", err)
	}
	requireContains(t, out, "mismatched force")
	requireContains(t, out, "sort")

	out, _, err = runCLI(t, "", "undo")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	requireContains(t, out, "Undoing mismatched force")
	if !fileExists(mismatched) || fileExists(placed) {
		t.Errorf("undo did not move %s back to %s", placed, mismatched)
	}
}

func TestCLIMismatchedDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(env.source, "_Mismatched", "junk.mkv")
	subs := filepath.Join(env.source, "_Mismatched", "junk.srt")
	writeCLIFile(t, video, "junk")
	writeCLIFile(t, subs, "subs")

	out, _, err := runCLI(t, "n\n", "mismatched", "delete", "junk.mkv")
	if err != nil {
		t.Fatalf("mismatched delete (declined): %v", err)
	}
	requireContains(t, out, "Aborted")
	if !fileExists(video) {
		t.Fatal("declined delete removed the file")
	}

	out, _, err = runCLI(t, "", "mismatched", "delete", "junk.mkv", "--yes")
	if err != nil {
		t.Fatalf("mismatched delete --yes: %v", err)
	}
	requireContains(t, out, "Deleted "+video)
	if fileExists(video) || fileExists(subs) {
		t.Error("delete left the file or its sidecar behind")
	}
}

func TestCLIMismatchedForceRejectsCategory(t *testing.T) {
	setupCLITestEnv(t)
	_, _, err := runCLI(t, "", "mismatched", "force", "x.mkv", "--as", "documentary")
	if err == nil || !strings.Contains(err.Error(), "--as must be one of") {
		t.Fatalf("force --as documentary error = %v", err)
	}
}

func TestCLIConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "", "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, env.configPath)

	out, _, err = runCLI(t, "", "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "fresh.json")
	out, _, err = runCLI(t, "", "config", "init", "--config", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote default configuration")
	if _, _, err := runCLI(t, "", "config", "init", "--config", target); err == nil {
		t.Error("config init over an existing file succeeded without --force")
	}

	// Defaults carry no source_dir, so validation names it
	_, errOut, err := runCLI(t, "", "config", "validate", "--config", target)
	if err == nil {
		t.Fatal("config validate of defaults succeeded, want source_dir error")
	}
	requireContains(t, errOut, "source_dir")
}

func TestCLIConfigShowMasksKeys(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("SORTMEDOWN_TMDB_API_KEY", "abcdef123456")

	out, _, err := runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "abcdef123456") {
		t.Errorf("config show leaked the api key:\n%s", out)
	}
	requireContains(t, out, env.source)
}

func TestCLIFlagOverridesConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	other := filepath.Join(t.TempDir(), "elsewhere")

	out, _, err := runCLI(t, "", "config", "show", "--source", other)
	if err != nil {
		t.Fatalf("config show --source: %v", err)
	}
	requireContains(t, out, other)
	if strings.Contains(out, `"source_dir": "`+env.source+`"`) {
		t.Error("--source did not override source_dir")
	}
}

func TestCLIUndoWithoutSessions(t *testing.T) {
	setupCLITestEnv(t)
	out, _, err := runCLI(t, "", "undo")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	requireContains(t, out, "No operation sessions found")
}
