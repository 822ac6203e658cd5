package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// Result is the outcome of a module build or of a whole build.
//
// Results are totally ordered from best to worst:
// SUCCESS < UNSTABLE < FAILURE < NOT_BUILT < ABORTED.
// The zero value means no result has been recorded yet.
type Result uint8

const (
	// ResultNone means no result has been set.
	ResultNone Result = iota
	// ResultSuccess means the build completed without problems.
	ResultSuccess
	// ResultUnstable means the build completed but reported problems such as test failures.
	ResultUnstable
	// ResultFailure means the build failed.
	ResultFailure
	// ResultNotBuilt means the module was never started.
	ResultNotBuilt
	// ResultAborted means the build was interrupted.
	ResultAborted
)

var resultNames = [...]string{
	ResultNone:     "",
	ResultSuccess:  "SUCCESS",
	ResultUnstable: "UNSTABLE",
	ResultFailure:  "FAILURE",
	ResultNotBuilt: "NOT_BUILT",
	ResultAborted:  "ABORTED",
}

// ParseResult converts the textual form of a result back into a Result.
func ParseResult(s string) (Result, error) {
	if s == "" {
		return ResultNone, nil
	}
	for r, name := range resultNames {
		if name != "" && strings.EqualFold(name, s) {
			return Result(r), nil
		}
	}
	return ResultNone, zerr.With(zerr.Wrap(ErrInvalidResult, "cannot parse result"), "result", s)
}

// String returns the upper-case name of the result.
func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "UNKNOWN"
}

// IsSet reports whether a result has been recorded.
func (r Result) IsSet() bool {
	return r != ResultNone
}

// IsWorseThan reports whether r is strictly worse than other.
// An unset result is never worse than anything.
func (r Result) IsWorseThan(other Result) bool {
	return r > other
}

// IsBetterOrEqual reports whether r is at least as good as other.
func (r Result) IsBetterOrEqual(other Result) bool {
	return r <= other
}

// Combine returns the worse of r and other. Unset results are ignored.
func (r Result) Combine(other Result) Result {
	if !r.IsSet() {
		return other
	}
	if other.IsWorseThan(r) {
		return other
	}
	return r
}

// CombineAggregate folds module results into own the way an aggregate build does:
// each module result is combined worse-of, except NOT_BUILT, which never
// degrades the aggregate.
func CombineAggregate(own Result, modules ...Result) Result {
	r := own
	for _, m := range modules {
		if m == ResultNotBuilt {
			continue
		}
		r = r.Combine(m)
	}
	return r
}

// MarshalText implements encoding.TextMarshaler.
func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Result) UnmarshalText(text []byte) error {
	parsed, err := ParseResult(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
