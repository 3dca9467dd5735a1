package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every problem found in a configuration. It is fatal
// at startup.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report config keys rather than Go field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the cross-field rules that struct
// tags cannot express.
func (cfg *Config) Validate() error {
	var problems []string

	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	if cfg.Watch && cfg.CleanupInPlace {
		problems = append(problems, "watch and cleanup_in_place cannot be combined")
	}

	if !cfg.CleanupInPlace && cfg.SourceDir != "" {
		for name, dir := range map[string]string{
			"movies_dir":       cfg.MoviesDir,
			"tv_shows_dir":     cfg.TVShowsDir,
			"anime_movies_dir": cfg.AnimeMoviesDir,
			"anime_series_dir": cfg.AnimeSeriesDir,
		} {
			if dir != "" && samePath(dir, cfg.SourceDir) {
				problems = append(problems, fmt.Sprintf("%s must differ from source_dir", name))
			}
		}
	}

	if cfg.CleanupInPlace && cfg.FallbackPolicy != FallbackIgnore && cfg.FallbackPolicy != FallbackMismatched {
		problems = append(problems, fmt.Sprintf("fallback_policy %q has no effect in cleanup_in_place mode; use ignore or mismatched", cfg.FallbackPolicy))
	}

	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return &ValidationError{Problems: problems}
}

func describe(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fmt.Sprint(fe.Value()))
	case "gt", "gte", "lte", "min", "max", "len":
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	case "startswith":
		return fmt.Sprintf("%s entries must start with %q", field, fe.Param())
	default:
		return fmt.Sprintf("%s fails %s", field, fe.Tag())
	}
}

func samePath(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}
