package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	s := Default()
	assert.NoError(t, Validate(s))
	assert.NotEmpty(t, s.HashrateID)
}

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	want := Default()
	want.FailoverTimeoutMinutes = 5
	want.MaxRetriesPerEndpoint = 7

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, want.FailoverTimeoutMinutes, got.FailoverTimeoutMinutes)
	assert.Equal(t, want.MaxRetriesPerEndpoint, got.MaxRetriesPerEndpoint)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	s := Default()
	s.StopWaitTimeoutSeconds = 0
	assert.Error(t, Validate(s))

	s = Default()
	s.ReportHashrate = true
	s.HashrateIntervalSeconds = 0
	assert.Error(t, Validate(s))

	s = Default()
	s.FailoverTimeoutMinutes = -1
	assert.Error(t, Validate(s))
}
