// Package vocabulary provides the PULSE semantic concept registry.
//
// The registry is an immutable snapshot of 1,000 concept codes organized
// into ten categories (ENT, ACT, PROP, REL, LOG, MATH, TIME, SPACE, DATA,
// META). Every code has the form CATEGORY.SUBCATEGORY.TERM, a description,
// and example usages. The canonical snapshot ships embedded in the binary;
// callers that need a different snapshot (tests, migrations) can load their
// own with Load and inject it wherever a *Registry is accepted.
//
// All registry operations are pure lookups against the loaded snapshot and
// are safe for concurrent use without locking.
package vocabulary
