package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz               int     `yaml:"tick_rate_hz"`
	InactivityTimeoutSeconds int     `yaml:"inactivity_timeout_seconds"`
	ThrottleThreshold        float32 `yaml:"throttle_threshold"`
	LabelRefreshTicks        int     `yaml:"label_refresh_ticks"`
	FilteredAnimations       []int   `yaml:"filtered_animations"`
	OutQueue                 int     `yaml:"out_queue"`

	PlayerClass  string  `yaml:"player_class"`
	DefaultLevel string  `yaml:"default_level"`
	Levels       []Level `yaml:"levels"`
}

type Level struct {
	Name   string `yaml:"name"`
	GameID int    `yaml:"game_id"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:          "1.0",
		TickRateHz:               60,
		InactivityTimeoutSeconds: 30,
		ThrottleThreshold:        10,
		LabelRefreshTicks:        60,
		FilteredAnimations:       []int{130},
		OutQueue:                 256,
		PlayerClass:              "Player",
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values with defaults.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.ProtocolVersion == "" {
		t.ProtocolVersion = d.ProtocolVersion
	}
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.InactivityTimeoutSeconds <= 0 {
		t.InactivityTimeoutSeconds = d.InactivityTimeoutSeconds
	}
	if t.ThrottleThreshold <= 0 {
		t.ThrottleThreshold = d.ThrottleThreshold
	}
	if t.LabelRefreshTicks <= 0 {
		t.LabelRefreshTicks = d.LabelRefreshTicks
	}
	if t.FilteredAnimations == nil {
		t.FilteredAnimations = d.FilteredAnimations
	}
	if t.OutQueue <= 0 {
		t.OutQueue = d.OutQueue
	}
	if t.PlayerClass == "" {
		t.PlayerClass = d.PlayerClass
	}
}

func (t Tuning) Validate() error {
	var errs []error
	if t.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("tick_rate_hz %d out of range", t.TickRateHz))
	}
	if t.OutQueue > 4096 {
		errs = append(errs, fmt.Errorf("out_queue %d out of range", t.OutQueue))
	}
	seen := map[string]bool{}
	for _, l := range t.Levels {
		if l.Name == "" {
			errs = append(errs, errors.New("level with empty name"))
			continue
		}
		if seen[l.Name] {
			errs = append(errs, fmt.Errorf("duplicate level %q", l.Name))
		}
		seen[l.Name] = true
	}
	if t.DefaultLevel != "" && !seen[t.DefaultLevel] {
		errs = append(errs, fmt.Errorf("default_level %q is not a configured level", t.DefaultLevel))
	}
	return errors.Join(errs...)
}

func (t Tuning) InactivityTimeout() time.Duration {
	return time.Duration(t.InactivityTimeoutSeconds) * time.Second
}
