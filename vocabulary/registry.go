package vocabulary

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

//go:embed concepts.json
var embeddedSnapshot []byte

// Concept is a single vocabulary entry. Entries are created at registry
// load time and never mutated afterward.
type Concept struct {
	Code        string   `json:"-"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// snapshot is the on-disk shape of a vocabulary snapshot.
type snapshot struct {
	Version  string             `json:"version"`
	Concepts map[string]Concept `json:"concepts"`
}

// Registry is an immutable vocabulary snapshot. Construct one with Load or
// use Default for the embedded canonical snapshot.
type Registry struct {
	version    string
	concepts   map[string]Concept
	byCategory map[string][]string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry built from the embedded canonical snapshot.
// The same instance is returned on every call.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Load(embeddedSnapshot)
		if err != nil {
			panic(fmt.Sprintf("vocabulary: embedded snapshot is invalid: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Load parses a JSON snapshot and builds a registry from it.
func Load(data []byte) (*Registry, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse vocabulary snapshot: %w", err)
	}
	if len(snap.Concepts) == 0 {
		return nil, fmt.Errorf("vocabulary snapshot contains no concepts")
	}

	r := &Registry{
		version:    snap.Version,
		concepts:   make(map[string]Concept, len(snap.Concepts)),
		byCategory: make(map[string][]string),
	}
	for code, c := range snap.Concepts {
		if strings.TrimSpace(code) == "" {
			return nil, fmt.Errorf("vocabulary snapshot contains an empty concept code")
		}
		c.Code = code
		r.concepts[code] = c
		r.byCategory[c.Category] = append(r.byCategory[c.Category], code)
	}
	for _, codes := range r.byCategory {
		sort.Strings(codes)
	}
	return r, nil
}

// Version returns the snapshot version string.
func (r *Registry) Version() string { return r.version }

// ValidateConcept reports whether code exists in the snapshot. Matching is
// exact and case-sensitive; empty or whitespace-only codes are never valid.
func (r *Registry) ValidateConcept(code string) bool {
	if strings.TrimSpace(code) == "" {
		return false
	}
	_, ok := r.concepts[code]
	return ok
}

// Get returns the concept entry for code.
func (r *Registry) Get(code string) (Concept, bool) {
	c, ok := r.concepts[code]
	return c, ok
}

// Category returns the category of code, or "" if the code is unknown.
func (r *Registry) Category(code string) string {
	return r.concepts[code].Category
}

// Description returns the description of code, or "" if the code is unknown.
func (r *Registry) Description(code string) string {
	return r.concepts[code].Description
}

// Examples returns the example usages of code. Unknown codes yield nil.
func (r *Registry) Examples(code string) []string {
	return r.concepts[code].Examples
}

// Search returns all concept codes whose code, description, or examples
// contain query, case-insensitively. Results are sorted for determinism.
func (r *Registry) Search(query string) []string {
	q := strings.ToLower(query)
	if q == "" {
		return nil
	}
	var matches []string
	for code, c := range r.concepts {
		if strings.Contains(strings.ToLower(code), q) ||
			strings.Contains(strings.ToLower(c.Description), q) ||
			containsFold(c.Examples, q) {
			matches = append(matches, code)
		}
	}
	sort.Strings(matches)
	return matches
}

// Suggest returns up to limit near-miss suggestions for an unknown code,
// best match first. Codes sharing the most leading segments with the input
// rank highest; substring matches on the trailing term fill the remainder.
func (r *Registry) Suggest(code string, limit int) []string {
	if limit <= 0 || strings.TrimSpace(code) == "" {
		return nil
	}

	segments := strings.Split(code, ".")
	type scored struct {
		code  string
		score int
	}
	var candidates []scored
	for existing := range r.concepts {
		if n := sharedSegments(segments, strings.Split(existing, ".")); n > 0 {
			candidates = append(candidates, scored{existing, n})
		}
	}
	// Within a prefix tier, shorter codes first: the more general concept
	// is the likelier correction.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if len(candidates[i].code) != len(candidates[j].code) {
			return len(candidates[i].code) < len(candidates[j].code)
		}
		return candidates[i].code < candidates[j].code
	})

	seen := make(map[string]bool, limit)
	var out []string
	for _, c := range candidates {
		if len(out) == limit {
			return out
		}
		if !seen[c.code] {
			seen[c.code] = true
			out = append(out, c.code)
		}
	}

	// Fall back to a substring search on the trailing term.
	term := segments[len(segments)-1]
	for _, match := range r.Search(term) {
		if len(out) == limit {
			break
		}
		if !seen[match] {
			seen[match] = true
			out = append(out, match)
		}
	}
	return out
}

// ListByCategory returns all codes in category, sorted.
func (r *Registry) ListByCategory(category string) []string {
	codes := r.byCategory[category]
	out := make([]string, len(codes))
	copy(out, codes)
	return out
}

// Categories returns all category codes present in the snapshot, sorted.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.byCategory))
	for cat := range r.byCategory {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// CountByCategory returns the number of concepts per category.
func (r *Registry) CountByCategory() map[string]int {
	counts := make(map[string]int, len(r.byCategory))
	for cat, codes := range r.byCategory {
		counts[cat] = len(codes)
	}
	return counts
}

// TotalCount returns the number of concepts in the snapshot.
func (r *Registry) TotalCount() int { return len(r.concepts) }

func containsFold(values []string, q string) bool {
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), q) {
			return true
		}
	}
	return false
}

// sharedSegments counts leading dot-separated segments common to a and b,
// ignoring the final segment of a (the term being corrected).
func sharedSegments(a, b []string) int {
	n := 0
	for i := 0; i < len(a)-1 && i < len(b); i++ {
		if a[i] != b[i] {
			break
		}
		n++
	}
	return n
}
