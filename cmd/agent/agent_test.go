package agent

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagsMatchConfigKeys(t *testing.T) {
	for _, name := range []string{
		"server.addr", "server.read_timeout", "server.write_timeout", "server.idle_timeout",
		"sampler.name", "sampler.interval", "sampler.include", "sampler.exclude", "sampler.type_policy",
		"sampler.host.enable", "sampler.host.collect_per_core", "sampler.host.ignore_networks", "sampler.host.refresh",
		"log.level", "log.format", "log.path", "log.max_size", "log.max_backup", "log.max_age", "log.compress",
	} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
	}
}

func TestOnceCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"once",
		"--pretty=false",
		"--sampler.name=once-test",
		"--sampler.include=runtime:*;os:type=Memory",
		"--log.path=" + t.TempDir(),
		"--log.level=warn",
	})
	require.NoError(t, rootCmd.Execute())

	var activity struct {
		Name      string `json:"name"`
		Noop      bool   `json:"noop"`
		Snapshots []struct {
			Category string `json:"category"`
			Name     string `json:"name"`
		} `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &activity))
	assert.Equal(t, "once-test", activity.Name)
	assert.False(t, activity.Noop)

	var names []string
	for _, s := range activity.Snapshots {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "runtime:type=Go")
	assert.Contains(t, names, "os:type=Memory")
	assert.Contains(t, names, "SampleContext")
}

func TestOnceInvalidConfig(t *testing.T) {
	rootCmd.SetArgs([]string{"once", "--sampler.type_policy=strict", "--log.path=" + t.TempDir()})
	require.Error(t, rootCmd.Execute())
}
