package pipelineconfig

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultInterceptModeName = "AirPlay2"
	defaultSongcastModeName  = "Receiver"
	defaultRampJiffiesLong   = 940 * 56448 // ~940ms at JiffiesPerSecond/1000
	defaultRampJiffiesShort  = 450 * 56448
	defaultMinDelayJiffies   = 0
)

// Config holds the construction-time configuration for both pipeline
// elements.
type Config struct {
	InterceptModeName string
	SongcastModeName  string
	RampJiffiesLong   uint32
	RampJiffiesShort  uint32
	MinDelayJiffies   uint32
}

type yamlConfig struct {
	Airplay struct {
		InterceptMode string `yaml:"intercept_mode"`
		SongcastMode  string `yaml:"songcast_mode"`
	} `yaml:"airplay"`
	Phase struct {
		RampJiffiesLong  uint32 `yaml:"ramp_jiffies_long"`
		RampJiffiesShort uint32 `yaml:"ramp_jiffies_short"`
		MinDelayJiffies  uint32 `yaml:"min_delay_jiffies"`
	} `yaml:"phase"`
}

// Load reads a YAML config file, falling back to the documented
// defaults for any field it omits.
func Load(path string) (Config, error) {
	cfg := Config{
		InterceptModeName: defaultInterceptModeName,
		SongcastModeName:  defaultSongcastModeName,
		RampJiffiesLong:   defaultRampJiffiesLong,
		RampJiffiesShort:  defaultRampJiffiesShort,
		MinDelayJiffies:   defaultMinDelayJiffies,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yc.Airplay.InterceptMode != "" {
		cfg.InterceptModeName = yc.Airplay.InterceptMode
	}
	if yc.Airplay.SongcastMode != "" {
		cfg.SongcastModeName = yc.Airplay.SongcastMode
	}
	if yc.Phase.RampJiffiesLong > 0 {
		cfg.RampJiffiesLong = yc.Phase.RampJiffiesLong
	}
	if yc.Phase.RampJiffiesShort > 0 {
		cfg.RampJiffiesShort = yc.Phase.RampJiffiesShort
	}
	cfg.MinDelayJiffies = yc.Phase.MinDelayJiffies

	if cfg.InterceptModeName == cfg.SongcastModeName {
		return Config{}, errors.New("airplay.intercept_mode and airplay.songcast_mode must differ")
	}

	return cfg, nil
}
