package storage

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// fallbackOrder is the fixed preference chain tried during automatic
// initialization.
var fallbackOrder = []Variant{VariantNative, VariantEmbedded, VariantFlatFile}

// Options influence backend selection. They are read once at Initialize.
type Options struct {
	// ForceVariant pins initialization to a single variant. Its failure is
	// terminal; no fallback occurs.
	ForceVariant Variant
}

// Handle wraps exactly one live backend together with its variant
// discriminant. The discriminant never changes for the life of the handle.
type Handle struct {
	Backend
	variant Variant
}

// Variant returns the discriminant of the live backend.
func (h *Handle) Variant() Variant { return h.variant }

// Selector initializes a persistent store against the ordered candidate
// variants, advancing past each one that fails. It owns at most one live
// handle; Close releases it and permits a fresh Initialize.
type Selector struct {
	mu     sync.Mutex
	handle *Handle

	// Variant constructors, replaceable in tests to simulate failures.
	openNative   func(targetPath string) (Backend, error)
	openEmbedded func(targetPath string, snap MigrationSnapshot) (Backend, error)
	openFlatFile func(targetPath string) (Backend, error)
	exportLegacy func(sourcePath string) MigrationSnapshot
}

// NewSelector returns a selector wired to the real backend constructors.
func NewSelector() *Selector {
	return &Selector{
		openNative: func(p string) (Backend, error) { return newNative(p) },
		openEmbedded: func(p string, snap MigrationSnapshot) (Backend, error) {
			return newEmbedded(p, snap)
		},
		openFlatFile: func(p string) (Backend, error) { return newFlatFile(p) },
		exportLegacy: ExportLegacy,
	}
}

// Initialize opens a backend for targetPath. With no forced variant the
// chain native-binary, embedded-engine, flat-file is tried in order; each
// failure is logged and the next candidate attempted. Only total exhaustion
// returns an error, wrapping ErrAllBackendsFailed. The caller must then
// assume no durable storage exists.
func (s *Selector) Initialize(targetPath string, opts Options) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return nil, fmt.Errorf("storage: already initialized with %s backend", s.handle.variant)
	}

	if opts.ForceVariant != "" {
		backend, err := s.attempt(opts.ForceVariant, targetPath)
		if err != nil {
			return nil, fmt.Errorf("storage: forced %s backend failed: %w", opts.ForceVariant, err)
		}
		s.handle = &Handle{Backend: backend, variant: opts.ForceVariant}
		log.Printf("storage: initialized %s backend (forced) at %s", opts.ForceVariant, targetPath)
		return s.handle, nil
	}

	var attemptErrs []error
	for _, v := range fallbackOrder {
		backend, err := s.attempt(v, targetPath)
		if err != nil {
			log.Printf("storage: %s backend unavailable: %v", v, err)
			attemptErrs = append(attemptErrs, fmt.Errorf("%s: %w", v, err))
			continue
		}
		s.handle = &Handle{Backend: backend, variant: v}
		log.Printf("storage: initialized %s backend at %s", v, targetPath)
		return s.handle, nil
	}

	return nil, fmt.Errorf("%w: %w", ErrAllBackendsFailed, errors.Join(attemptErrs...))
}

// attempt opens a single variant, running its preconditions first.
func (s *Selector) attempt(v Variant, targetPath string) (Backend, error) {
	switch v {
	case VariantNative:
		if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
			return nil, fmt.Errorf("create parent directory: %w", err)
		}
		return s.openNative(targetPath)
	case VariantEmbedded:
		var snap MigrationSnapshot
		if legacyStoreExists(targetPath) {
			snap = s.exportLegacy(targetPath)
		}
		return s.openEmbedded(targetPath, snap)
	case VariantFlatFile:
		return s.openFlatFile(targetPath)
	default:
		return nil, fmt.Errorf("unknown variant %q", v)
	}
}

// legacyStoreExists reports whether a file that is not already an
// embedded-engine store sits at targetPath.
func legacyStoreExists(targetPath string) bool {
	if strings.HasSuffix(targetPath, embeddedExt) {
		return false
	}
	info, err := os.Stat(targetPath)
	return err == nil && !info.IsDir()
}

// Variant returns the live backend's discriminant, or the empty string when
// not initialized.
func (s *Selector) Variant() Variant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return ""
	}
	return s.handle.variant
}

// Initialized reports whether a live backend exists.
func (s *Selector) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// Handle returns the live handle, or ErrNotInitialized.
func (s *Selector) Handle() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil, ErrNotInitialized
	}
	return s.handle, nil
}

// Close releases the live backend. Idempotent; safe before Initialize.
func (s *Selector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return nil
	}
	err := s.handle.Close()
	s.handle = nil
	return err
}
