// ABOUTME: YAML-backed configuration loading for the Runner's operational settings.
// ABOUTME: Keeps checkpoint/backoff defaults in a file instead of hardcoding them at the call site.
package attractor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk shape of a Runner's operational configuration.
type FileConfig struct {
	CheckpointDir      string `yaml:"checkpoint_dir"`
	AutoCheckpointPath string `yaml:"auto_checkpoint_path"`
	Backoff            struct {
		Base       string  `yaml:"base"`
		Multiplier float64 `yaml:"multiplier"`
		Max        string  `yaml:"max"`
	} `yaml:"backoff"`
	HTTPAddr string `yaml:"http_addr"`
}

// LoadFileConfig reads and parses a YAML configuration file.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &fc, nil
}

// RunnerConfig builds a RunnerConfig from the file config's checkpoint settings.
func (fc *FileConfig) RunnerConfig() RunnerConfig {
	return RunnerConfig{
		CheckpointDir:      fc.CheckpointDir,
		AutoCheckpointPath: fc.AutoCheckpointPath,
	}
}

// ApplyGraphDefaults seeds the graph's retry-backoff attributes from the file
// config, for any attribute the graph source did not already set explicitly
// -- the file config supplies an operator-wide default, never an override.
func (fc *FileConfig) ApplyGraphDefaults(g *Graph) {
	if fc.Backoff.Base != "" && !g.Attrs.Has("backoff_base") {
		if d, err := time.ParseDuration(fc.Backoff.Base); err == nil {
			g.Attrs["backoff_base"] = DurationAttr(d.Milliseconds(), fc.Backoff.Base)
		}
	}
	if fc.Backoff.Multiplier > 0 && !g.Attrs.Has("backoff_multiplier") {
		g.Attrs["backoff_multiplier"] = FloatAttr(fc.Backoff.Multiplier)
	}
	if fc.Backoff.Max != "" && !g.Attrs.Has("backoff_max") {
		if d, err := time.ParseDuration(fc.Backoff.Max); err == nil {
			g.Attrs["backoff_max"] = DurationAttr(d.Milliseconds(), fc.Backoff.Max)
		}
	}
}
