// Package keyword holds the wake phrase catalogue: keyword records, model
// file discovery, and name lookup with fuzzy suggestions.
package keyword

import (
	"fmt"
	"sort"
)

// DefaultName is the keyword bound implicitly when a client streams audio
// without first sending a detect request.
const DefaultName = "porcupine"

// Keyword identifies one wake phrase and the model file needed to detect it.
// Immutable after discovery.
type Keyword struct {
	// Name is the phrase identifier, unique within a running instance.
	Name string

	// Language is the model's language code (e.g. "en").
	Language string

	// ModelPath is the keyword model file (.ppn).
	ModelPath string
}

// UnknownError reports a keyword name absent from the discovered set. The
// session cannot proceed without a bound detector, so callers surface it as
// a terminal session error.
type UnknownError struct {
	Name string

	// Suggestion is the closest known name, or "" when nothing is close.
	Suggestion string
}

func (e *UnknownError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("keyword: no keyword %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("keyword: no keyword %q", e.Name)
}

// Set is the catalogue of discovered keywords plus the per-language library
// parameter files detectors are built against. Read-only after discovery;
// safe for concurrent use.
type Set struct {
	keywords map[string]Keyword

	// libPaths maps language code to the porcupine_params .pv file.
	libPaths map[string]string
}

// NewSet builds a Set from explicit keywords and language library paths.
// Most callers obtain a Set via [Discover]; NewSet exists for embedding
// callers and tests that do not discover from the filesystem.
func NewSet(keywords []Keyword, libPaths map[string]string) *Set {
	s := &Set{
		keywords: make(map[string]Keyword, len(keywords)),
		libPaths: libPaths,
	}
	for _, kw := range keywords {
		s.keywords[kw.Name] = kw
	}
	return s
}

// Get returns the keyword for name. When the name is unknown, the returned
// error is an *UnknownError carrying a fuzzy suggestion.
func (s *Set) Get(name string) (Keyword, error) {
	kw, ok := s.keywords[name]
	if !ok {
		return Keyword{}, &UnknownError{Name: name, Suggestion: Suggest(name, s.Names())}
	}
	return kw, nil
}

// LibraryPath returns the language parameter file for lang, or "" when the
// language has no library installed.
func (s *Set) LibraryPath(lang string) string {
	return s.libPaths[lang]
}

// Names returns all keyword names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.keywords))
	for name := range s.keywords {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns all keywords ordered by name.
func (s *Set) All() []Keyword {
	names := s.Names()
	kws := make([]Keyword, 0, len(names))
	for _, name := range names {
		kws = append(kws, s.keywords[name])
	}
	return kws
}

// Len returns the number of discovered keywords.
func (s *Set) Len() int { return len(s.keywords) }
