package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// fakeBackend records nothing; selector tests only care about which variant
// ends up live.
type fakeBackend struct {
	closed int
}

func (f *fakeBackend) Get(ctx context.Context, key string) ([]byte, error) { return nil, ErrNotFound }
func (f *fakeBackend) Put(ctx context.Context, key string, v []byte) error { return nil }
func (f *fakeBackend) Delete(ctx context.Context, key string) error        { return nil }
func (f *fakeBackend) All(ctx context.Context) (map[string][]byte, error)  { return nil, nil }
func (f *fakeBackend) Close() error                                        { f.closed++; return nil }

// testSelector returns a selector whose native attempt fails when
// nativeFails is set, with the other variants succeeding as fakes.
func testSelector(nativeFails bool, attempts *[]Variant) *Selector {
	s := NewSelector()
	s.openNative = func(p string) (Backend, error) {
		*attempts = append(*attempts, VariantNative)
		if nativeFails {
			return nil, errors.New("cgo driver unavailable")
		}
		return &fakeBackend{}, nil
	}
	s.openEmbedded = func(p string, snap MigrationSnapshot) (Backend, error) {
		*attempts = append(*attempts, VariantEmbedded)
		return &fakeBackend{}, nil
	}
	s.openFlatFile = func(p string) (Backend, error) {
		*attempts = append(*attempts, VariantFlatFile)
		return &fakeBackend{}, nil
	}
	return s
}

func TestSelector_NativeFirst(t *testing.T) {
	var attempts []Variant
	s := testSelector(false, &attempts)

	target := filepath.Join(t.TempDir(), "memory.db")
	h, err := s.Initialize(target, Options{})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if h.Variant() != VariantNative {
		t.Errorf("expected native variant, got %s", h.Variant())
	}
	if len(attempts) != 1 {
		t.Errorf("expected a single attempt, got %v", attempts)
	}
	if !s.Initialized() || s.Variant() != VariantNative {
		t.Error("selector state not reflecting live backend")
	}
	// No fallback happened, so no migration snapshot may exist.
	if _, err := os.Stat(ExportPath(target)); !os.IsNotExist(err) {
		t.Error("export snapshot must not exist when native succeeds")
	}
}

func TestSelector_FallsBackToEmbedded(t *testing.T) {
	var attempts []Variant
	s := testSelector(true, &attempts)

	h, err := s.Initialize(filepath.Join(t.TempDir(), "memory.db"), Options{})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if h.Variant() != VariantEmbedded {
		t.Errorf("expected embedded variant, got %s", h.Variant())
	}
	if len(attempts) != 2 || attempts[0] != VariantNative || attempts[1] != VariantEmbedded {
		t.Errorf("unexpected attempt order: %v", attempts)
	}
}

func TestSelector_FallbackExportsLegacyStore(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "memory.db")
	makeLegacyStore(t, target)

	var attempts []Variant
	s := testSelector(true, &attempts)
	// Real export, fake embedded open: we only verify the bridge ran.
	s.exportLegacy = ExportLegacy

	var received MigrationSnapshot
	s.openEmbedded = func(p string, snap MigrationSnapshot) (Backend, error) {
		received = snap
		return &fakeBackend{}, nil
	}

	if _, err := s.Initialize(target, Options{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if received == nil {
		t.Fatal("embedded variant did not receive the migration snapshot")
	}
	if _, ok := received["records"]; !ok {
		t.Error("snapshot missing the records table")
	}
	if _, err := os.Stat(ExportPath(target)); err != nil {
		t.Errorf("export sidecar missing after fallback: %v", err)
	}
}

func TestSelector_NoMigrationForEmbeddedOwnFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "memory.portable.db")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	var attempts []Variant
	s := testSelector(true, &attempts)
	exported := false
	s.exportLegacy = func(string) MigrationSnapshot {
		exported = true
		return nil
	}

	if _, err := s.Initialize(target, Options{}); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if exported {
		t.Error("migration must not run for a file already in the embedded format")
	}
}

func TestSelector_AllVariantsFail(t *testing.T) {
	s := NewSelector()
	s.openNative = func(string) (Backend, error) { return nil, errors.New("no cgo") }
	s.openEmbedded = func(string, MigrationSnapshot) (Backend, error) {
		return nil, errors.New("disk full")
	}
	s.openFlatFile = func(string) (Backend, error) { return nil, errors.New("disk full") }

	h, err := s.Initialize(filepath.Join(t.TempDir(), "memory.db"), Options{})
	if h != nil {
		t.Error("no handle may be returned on total exhaustion")
	}
	if !errors.Is(err, ErrAllBackendsFailed) {
		t.Errorf("expected ErrAllBackendsFailed, got %v", err)
	}
	if s.Initialized() {
		t.Error("selector must not report initialized after exhaustion")
	}
}

func TestSelector_ForcedVariantFailureIsTerminal(t *testing.T) {
	var attempts []Variant
	s := testSelector(true, &attempts)

	_, err := s.Initialize(filepath.Join(t.TempDir(), "memory.db"),
		Options{ForceVariant: VariantNative})
	if err == nil {
		t.Fatal("forced native failure must propagate")
	}
	if len(attempts) != 1 || attempts[0] != VariantNative {
		t.Errorf("forced mode must not fall back: %v", attempts)
	}
}

func TestSelector_ForcedVariant(t *testing.T) {
	var attempts []Variant
	s := testSelector(false, &attempts)

	h, err := s.Initialize(filepath.Join(t.TempDir(), "memory.db"),
		Options{ForceVariant: VariantFlatFile})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if h.Variant() != VariantFlatFile {
		t.Errorf("expected flat-file variant, got %s", h.Variant())
	}
}

func TestSelector_CloseAndReinitialize(t *testing.T) {
	var attempts []Variant
	s := testSelector(false, &attempts)
	target := filepath.Join(t.TempDir(), "memory.db")

	h, err := s.Initialize(target, Options{})
	if err != nil {
		t.Fatal(err)
	}
	fb := h.Backend.(*fakeBackend)

	// Double Initialize without Close is refused.
	if _, err := s.Initialize(target, Options{}); err == nil {
		t.Error("second Initialize without Close must fail")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if fb.closed != 1 {
		t.Errorf("backend closed %d times, want 1", fb.closed)
	}
	if s.Initialized() {
		t.Error("selector still initialized after Close")
	}

	if _, err := s.Initialize(target, Options{}); err != nil {
		t.Fatalf("re-Initialize after Close failed: %v", err)
	}
}

func TestSelector_RealEmbeddedFallbackEndToEnd(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "memory.db")
	makeLegacyStore(t, target)

	s := NewSelector()
	s.openNative = func(string) (Backend, error) {
		return nil, errors.New("simulated native failure")
	}

	h, err := s.Initialize(target, Options{})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer s.Close()

	if h.Variant() != VariantEmbedded {
		t.Fatalf("expected embedded variant, got %s", h.Variant())
	}

	// Legacy data survived the migration.
	got, err := h.Get(context.Background(), "memory:1")
	if err != nil {
		t.Fatalf("migrated record missing: %v", err)
	}
	if string(got) != `{"id":"1","content":"remember this"}` {
		t.Errorf("unexpected migrated value: %s", got)
	}
}
