package config

import (
	"os"
	"path/filepath"
	"strings"
)

var envReplacer = strings.NewReplacer(".", "_")

// EnsureDirectories creates the output directory.
func (c *Config) EnsureDirectories() error {
	return os.MkdirAll(c.Output.Dir, 0755)
}

// FullPath returns the path of the full result table.
func (c *Config) FullPath() string {
	return filepath.Join(c.Output.Dir, c.Output.Full)
}

// QuantilesPath returns the path of the summary table.
func (c *Config) QuantilesPath() string {
	return filepath.Join(c.Output.Dir, c.Output.Quantiles)
}

// IsDevelopment returns true for debug-level console logging.
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}
