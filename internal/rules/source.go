package rules

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/boshu2/keyguard/internal/logger"
)

var log = logger.New("rules")

// Source produces the rules of one layer.
//
// Load may return usable rules together with a non-nil error describing
// entries it skipped. A Source never panics and never blocks beyond a single
// file read.
type Source interface {
	Layer() Layer
	Load() ([]Rule, error)
}

// FileSystem abstracts file reads for testability.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
}

// OSFileSystem implements FileSystem using the real OS.
type OSFileSystem struct{}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

const (
	// DefaultEnvVar holds ad-hoc '|'-separated patterns.
	DefaultEnvVar = "KEYCHAIN_CUSTOM_RULES"

	// RulesDir is the directory under $HOME holding the rules file.
	RulesDir = ".keychain"
	// RulesFile is the default rules file name.
	RulesFile = "rules.json"
)

// DefaultRulesPath returns ~/.keychain/rules.json.
func DefaultRulesPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(RulesDir, RulesFile)
	}
	return filepath.Join(home, RulesDir, RulesFile)
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
