package core

import (
	"fmt"

	"github.com/Digital-Shane/sort-me-down/internal/media"
	"github.com/Digital-Shane/sort-me-down/internal/provider"
)

// VerdictKind is the outcome of comparing a filename with its metadata.
type VerdictKind int

const (
	VerdictNoResult VerdictKind = iota
	VerdictConfident
	VerdictTypeMismatch
	VerdictYearMismatch
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictConfident:
		return "confident"
	case VerdictTypeMismatch:
		return "type_mismatch"
	case VerdictYearMismatch:
		return "year_mismatch"
	default:
		return "no_result"
	}
}

// MatchVerdict carries the evaluated candidate and a reason for the audit log.
type MatchVerdict struct {
	Kind      VerdictKind
	Candidate *provider.Candidate
	Reason    string
}

// Confident reports whether the verdict allows normal placement.
func (v MatchVerdict) Confident() bool {
	return v.Kind == VerdictConfident
}

// ConflictResolver compares parsed tokens with the top candidate.
//
// Only the first candidate is evaluated, even when a later one would agree
// with the filename. Ranking decides which candidate that is.
type ConflictResolver struct {
	YearTolerance int
}

// Evaluate produces the verdict for tokens against ranked candidates.
func (r ConflictResolver) Evaluate(tokens media.ParsedTokens, candidates []provider.Candidate) MatchVerdict {
	if len(candidates) == 0 {
		return MatchVerdict{Kind: VerdictNoResult, Reason: fmt.Sprintf("no metadata found for %q", tokens.Title)}
	}

	top := candidates[0]
	v := MatchVerdict{Candidate: &top}

	if top.IsSeries() != tokens.SeriesLikely {
		v.Kind = VerdictTypeMismatch
		v.Reason = fmt.Sprintf("filename looks like a %s but %s says %q is a %s",
			expectedType(tokens), top.Provider, top.Title, top.MediaType)
		return v
	}

	if tokens.HasYear() && top.Year > 0 {
		diff := tokens.Year - top.Year
		if diff < 0 {
			diff = -diff
		}
		if diff > r.YearTolerance {
			v.Kind = VerdictYearMismatch
			v.Reason = fmt.Sprintf("filename year %d differs from %s year %d for %q",
				tokens.Year, top.Provider, top.Year, top.Title)
			return v
		}
	}

	v.Kind = VerdictConfident
	v.Reason = fmt.Sprintf("matched %q (%s) on %s", top.Title, yearLabel(top.Year), top.Provider)
	return v
}

func expectedType(tokens media.ParsedTokens) provider.MediaType {
	if tokens.SeriesLikely {
		return provider.MediaTypeSeries
	}
	return provider.MediaTypeMovie
}

func yearLabel(year int) string {
	if year == 0 {
		return "unknown year"
	}
	return fmt.Sprint(year)
}
