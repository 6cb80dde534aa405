// Package config loads the flat settings record that wires the server
// together. The file may be JSON or YAML, selected by extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvSettingsPath names the environment variable overriding the settings
// file location.
const EnvSettingsPath = "ASSET_SERVER_SETTINGS"

// DefaultPath is used when EnvSettingsPath is unset.
const DefaultPath = "./asset_server_settings.json"

// Settings is the operator-facing configuration record.
type Settings struct {
	// LibraryRoot is the absolute path of the source tree.
	LibraryRoot string `json:"library_root" yaml:"library_root"`
	// LibraryTarget is the absolute path of the compiled output tree.
	LibraryTarget string `json:"library_target" yaml:"library_target"`
	// Input2UUID is the path of the name=identifier side file.
	Input2UUID string `json:"input2uuid" yaml:"input2uuid"`
	// DBFile is the catalog file path. Defaults to <library_root>/assets.db.
	DBFile string `json:"db_file,omitempty" yaml:"db_file,omitempty"`
	// MaxConcurrency bounds concurrent compiles. Defaults to the logical
	// CPU count.
	MaxConcurrency int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
	// AutoCompile submits dirty assets without operator action.
	AutoCompile bool `json:"auto_compile" yaml:"auto_compile"`
	// Watch enables the filesystem watcher.
	Watch bool `json:"watch" yaml:"watch"`
	// AllowExternalTools enables the ExternalTools override table.
	AllowExternalTools bool `json:"allow_external_tools" yaml:"allow_external_tools"`
	// ExternalTools maps tool names (img2bf, obj2bf, matcomp) to explicit
	// executable paths. Ignored unless AllowExternalTools is set.
	ExternalTools map[string]string `json:"external_tools,omitempty" yaml:"external_tools,omitempty"`
}

// Load reads the settings file named by EnvSettingsPath, falling back to
// DefaultPath.
func Load() (Settings, error) {
	path := os.Getenv(EnvSettingsPath)
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile reads and validates one settings file.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings %s: %w", path, err)
	}

	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("parsing settings %s: %w", path, err)
	}

	if s.LibraryRoot == "" {
		return Settings{}, fmt.Errorf("settings %s: library_root is required", path)
	}
	if s.LibraryTarget == "" {
		return Settings{}, fmt.Errorf("settings %s: library_target is required", path)
	}

	s.applyDefaults()
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.DBFile == "" {
		s.DBFile = filepath.Join(s.LibraryRoot, "assets.db")
	}
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = runtime.NumCPU()
	}
	if !s.AllowExternalTools {
		s.ExternalTools = nil
	}
}
