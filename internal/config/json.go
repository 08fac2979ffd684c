package config

import (
	"encoding/json"
	"os"

	"github.com/mlukins/keyfob/internal/timex"
)

// jsonConfig is the DTO used exclusively for JSON unmarshalling. It relies
// on timex.Duration so intervals can be written either as strings like
// "250ms" or as integer nanoseconds. Parsed values are copied into the
// runtime Config.
type jsonConfig struct {
	AppID         *string         `json:"app_id"`
	Backend       *string         `json:"backend"`
	StateDir      *string         `json:"state_dir"`
	FrameInterval *timex.Duration `json:"frame_interval"`
	Workers       *int            `json:"workers"`
}

// parseJson overlays cfg with values from the JSON file at path. An empty
// path means no config file was requested. Absent keys keep their current
// values.
func parseJson(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc jsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	if jc.AppID != nil {
		cfg.AppID = *jc.AppID
	}
	if jc.Backend != nil {
		cfg.Backend = Backend(*jc.Backend)
	}
	if jc.StateDir != nil {
		cfg.StateDir = *jc.StateDir
	}
	if jc.FrameInterval != nil {
		cfg.FrameInterval = jc.FrameInterval.Duration
	}
	if jc.Workers != nil {
		cfg.Workers = *jc.Workers
	}
	return nil
}
