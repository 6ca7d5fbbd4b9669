// Package config holds the pool manager's immutable Settings (spec §3)
// plus the load/save/validate trio the teacher's pkg/config carried,
// adapted from quantum-mining-specific fields to the spec's vocabulary.
package config

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Settings is immutable after construction (spec §3).
type Settings struct {
	// FailoverTimeoutMinutes: 0 disables failback to preferred.
	FailoverTimeoutMinutes int `json:"failover_timeout_minutes"`

	ReportHashrate          bool   `json:"report_hashrate"`
	HashrateIntervalSeconds int    `json:"hashrate_interval_seconds"`
	HashrateID              string `json:"hashrate_id"`

	// MaxRetriesPerEndpoint: 0 disables rotation on attempts.
	MaxRetriesPerEndpoint int `json:"max_retries_per_endpoint"`

	// DelayBeforeRetrySeconds: 0 means connect immediately.
	DelayBeforeRetrySeconds int `json:"delay_before_retry_seconds"`

	// Forwarded verbatim to clients. GetworkPollIntervalSeconds is read by
	// the HTTP-poll client as milliseconds (default 500 ms), despite its name.
	NoWorkTimeoutSeconds       int `json:"no_work_timeout_seconds"`
	NoResponseTimeoutSeconds   int `json:"no_response_timeout_seconds"`
	GetworkPollIntervalSeconds int `json:"getwork_poll_interval_seconds"`

	// BenchmarkBlock is forwarded to the simulator client.
	BenchmarkBlock int64 `json:"benchmark_block"`

	// StopWaitTimeoutSeconds bounds Manager.Stop's poll loop (spec §9
	// design note; the original C++ never bounds this).
	StopWaitTimeoutSeconds int `json:"stop_wait_timeout_seconds"`
}

// Default returns sane defaults, filling HashrateID with a fresh uuid
// when the caller hasn't chosen one (spec §12 item 4).
func Default() Settings {
	return Settings{
		FailoverTimeoutMinutes:     20,
		ReportHashrate:             false,
		HashrateIntervalSeconds:    60,
		HashrateID:                 uuid.NewString(),
		MaxRetriesPerEndpoint:      3,
		DelayBeforeRetrySeconds:    3,
		NoWorkTimeoutSeconds:       180,
		NoResponseTimeoutSeconds:   2,
		GetworkPollIntervalSeconds: 500,
		BenchmarkBlock:             -1,
		StopWaitTimeoutSeconds:     30,
	}
}

// Load reads Settings from a JSON file, starting from Default() so an
// incomplete file still yields valid settings.
func Load(filename string) (Settings, error) {
	s := Default()
	data, err := os.ReadFile(filename)
	if err != nil {
		return Settings{}, errors.Wrap(err, "read config file")
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Settings{}, errors.Wrap(err, "parse config file")
	}
	if s.HashrateID == "" {
		s.HashrateID = uuid.NewString()
	}
	return s, nil
}

// Save writes s to filename as indented JSON.
func Save(filename string, s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "write config file")
	}
	return nil
}

// Validate rejects settings combinations that can never behave sensibly.
func Validate(s Settings) error {
	if s.FailoverTimeoutMinutes < 0 {
		return errors.New("failover timeout minutes must be >= 0")
	}
	if s.MaxRetriesPerEndpoint < 0 {
		return errors.New("max retries per endpoint must be >= 0")
	}
	if s.DelayBeforeRetrySeconds < 0 {
		return errors.New("delay before retry must be >= 0")
	}
	if s.ReportHashrate && s.HashrateIntervalSeconds <= 0 {
		return errors.New("hashrate interval must be > 0 when report_hashrate is enabled")
	}
	if s.StopWaitTimeoutSeconds <= 0 {
		return errors.New("stop wait timeout must be > 0")
	}
	return nil
}
