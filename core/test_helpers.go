package core

import "testing"

// setupTempEngine opens a fresh Engine rooted at a t.TempDir(), matching
// the teacher's SetupTempDB helper (core/test_helpers.go): callers get a
// ready engine and don't have to think about cleanup.
func setupTempEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	root := t.TempDir()
	e, err := Open(root, opts...)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", root, err)
	}
	t.Cleanup(func() { _ = e.Close() })

	return e
}
