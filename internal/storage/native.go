package storage

import (
	_ "github.com/mattn/go-sqlite3"
)

// nativeDriver is the cgo SQLite driver. When the binary was built with
// CGO_ENABLED=0 the driver still registers but fails at connect time, which
// is exactly the probe the fallback chain relies on.
const nativeDriver = "sqlite3"

// newNative opens the native-binary variant at targetPath.
func newNative(targetPath string) (*sqlBackend, error) {
	return openSQL(nativeDriver, targetPath, VariantNative)
}
