package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the directory where suggestd writes its logs.
// Honors SUGGESTD_LOG_DIR, otherwise ~/.suggestd/logs.
func DefaultLogDir() string {
	if dir := os.Getenv("SUGGESTD_LOG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".suggestd", "logs")
	}
	return filepath.Join(home, ".suggestd", "logs")
}

// DefaultLogPath returns the default log file path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "suggestd.log")
}
