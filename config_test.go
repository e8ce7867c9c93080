package asynciter

import (
	"testing"
	"time"

	"github.com/barweiss/go-tuple"
	"github.com/csimplestring/asynciter/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"interval 30 seconds", 30 * time.Second, false},
		{"interval 1 second", time.Second, false},
		{"interval 2 minutes", 2 * time.Minute, false},
		{"INTERVAL 1 WEEK", 7 * 24 * time.Hour, false},
		{"interval 3 days", 72 * time.Hour, false},
		{"interval 500 milliseconds", 500 * time.Millisecond, false},
		{"30 seconds", 0, true},
		{"period 30 seconds", 0, true},
		{"interval 30 fortnights", 0, true},
		{"interval x seconds", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewConfig_Defaults(t *testing.T) {
	c, err := NewConfig(nil)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, ConfigOperationTimeout.MustFrom(c))
	assert.False(t, ConfigRecoverUpstreamErrors.MustFrom(c))
	assert.False(t, ConfigOverwrite.MustFrom(c))
	assert.Equal(t, "asynciter", ConfigMetricsNamespace.MustFrom(c))
}

func TestNewConfig_Overrides(t *testing.T) {
	c, err := NewConfig(map[string]string{
		"operationTimeout": "interval 5 minutes",
		"overwrite":        "TRUE",
	})
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, ConfigOperationTimeout.MustFrom(c))
	assert.True(t, ConfigOverwrite.MustFrom(c))
	assert.Equal(t, "false", c.Options["recoverUpstreamErrors"])
}

func TestNewConfig_Invalid(t *testing.T) {
	_, err := NewConfig(map[string]string{"unknown": "1"})
	assert.ErrorIs(t, err, errno.ErrIllegalArgument)

	_, err = NewConfig(map[string]string{"overwrite": "maybe"})
	assert.Error(t, err)

	_, err = NewConfig(map[string]string{"metricsNamespace": ""})
	assert.ErrorIs(t, err, errno.ErrIllegalArgument)
}

func TestSetting_FromNilConfig(t *testing.T) {
	v, err := ConfigOperationTimeout.From(nil)
	assert.NoError(t, err)
	assert.Equal(t, 30*time.Second, v)
}

func TestMergeGlobalConfigurations(t *testing.T) {
	confs := configurations{
		tuple.New2("a", "1"),
		tuple.New2("b", "2"),
	}

	got := mergeGlobalConfigurations(confs, map[string]string{"b": "3", "c": "4"})
	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, got)
}
