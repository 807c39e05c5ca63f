// Package match implements whitelist pattern matching for navigation paths.
//
// A pattern ending in "*" matches every path that starts with the text
// before the marker. Any other pattern matches only the identical path.
// Matching is a raw string prefix test: "/pages/public*" matches
// "/pages/publicly". Paths are not case folded or slash normalized.
package match

import (
	"fmt"
	"log/slog"
	"strings"
)

// Wildcard is the trailing marker that turns a pattern into a prefix match.
const Wildcard = "*"

// Sink receives failures recovered during matching.
type Sink func(error)

// Evaluator matches paths against whitelist patterns. A failure inside an
// evaluation is reported to the sink and counts as "no match".
type Evaluator struct {
	sink Sink
}

// NewEvaluator creates an evaluator that reports failures to sink. A nil
// sink logs through slog.Default().
func NewEvaluator(sink Sink) *Evaluator {
	if sink == nil {
		sink = logSink
	}
	return &Evaluator{sink: sink}
}

var std = NewEvaluator(nil)

// Matches reports whether path satisfies pattern.
func Matches(path, pattern string) bool {
	return std.Matches(path, pattern)
}

// IsWhitelisted reports whether path satisfies any of patterns.
func IsWhitelisted(path string, patterns []string) bool {
	return std.IsWhitelisted(path, patterns)
}

// Matches reports whether path satisfies pattern.
func (e *Evaluator) Matches(path, pattern string) (ok bool) {
	defer e.recover("path match", &ok)

	if prefix, found := strings.CutSuffix(pattern, Wildcard); found {
		return strings.HasPrefix(path, prefix)
	}
	return path == pattern
}

// IsWhitelisted reports whether path satisfies any of patterns.
func (e *Evaluator) IsWhitelisted(path string, patterns []string) bool {
	_, ok := e.Find(path, patterns)
	return ok
}

// Find returns the first pattern that path satisfies.
func (e *Evaluator) Find(path string, patterns []string) (pattern string, ok bool) {
	defer e.recover("whitelist check", &ok)

	for _, p := range patterns {
		if e.Matches(path, p) {
			return p, true
		}
	}
	return "", false
}

func (e *Evaluator) recover(op string, ok *bool) {
	r := recover()
	if r == nil {
		return
	}
	*ok = false
	err, isErr := r.(error)
	if !isErr {
		err = fmt.Errorf("%v", r)
	}
	e.sink(fmt.Errorf("%s: %w", op, err))
}

func logSink(err error) {
	slog.Default().Error("match failed", "component", "navguard", "error", err)
}
