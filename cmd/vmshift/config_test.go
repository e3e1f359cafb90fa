package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmshift/vmshift/wfault"
)

func writeconfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vmshift.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFileConfig(t *testing.T) {
	path := writeconfig(t, `
export:
  vm: Alice
  destination: '\\nas\exports'
  prefix: HyperV_Export
  prefer_snapshot: true
  use_vss: false
  job_timeout: 1h30m
locate:
  server: vbr01.example.net
  username: svc-backup
import:
  vmid: 100
  pool: local-lvm
share:
  credentialed: true
  username: EXAMPLE\operator
`)

	config, err := loadFileConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "Alice", config.Export.VM)
	assert.Equal(t, `\\nas\exports`, config.Export.Destination)
	require.NotNil(t, config.Export.PreferSnapshot)
	assert.True(t, *config.Export.PreferSnapshot)
	require.NotNil(t, config.Export.UseVSS)
	assert.False(t, *config.Export.UseVSS)
	assert.Nil(t, config.Export.Purge)
	assert.Equal(t, "1h30m", config.Export.JobTimeout)
	assert.Equal(t, "vbr01.example.net", config.Locate.Server)
	assert.Equal(t, 100, config.Import.VMID)
	require.NotNil(t, config.Share.Credentialed)
	assert.True(t, *config.Share.Credentialed)
}

func TestLoadFileConfigEmptyPath(t *testing.T) {
	config, err := loadFileConfig("")
	require.NoError(t, err)
	assert.Equal(t, "", config.Export.VM)
}

func TestLoadFileConfigMissingFile(t *testing.T) {
	_, err := loadFileConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))
}

func TestLoadFileConfigRejectsUnknownKeys(t *testing.T) {
	path := writeconfig(t, "export:\n  vmname: typo\n")

	_, err := loadFileConfig(path)
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))
}

func TestMergePrefersExplicitFlags(t *testing.T) {
	cmd := &cobra.Command{}
	var vm string
	cmd.Flags().StringVar(&vm, "vm", "", "")
	require.NoError(t, cmd.Flags().Set("vm", "FromFlag"))

	mergeString(cmd, "vm", "FromFile", &vm)
	assert.Equal(t, "FromFlag", vm)
}

func TestMergeFillsUnsetFlagsFromFile(t *testing.T) {
	cmd := &cobra.Command{}
	var vm string
	var purge bool
	var timeout time.Duration
	cmd.Flags().StringVar(&vm, "vm", "", "")
	cmd.Flags().BoolVar(&purge, "purge", true, "")
	cmd.Flags().DurationVar(&timeout, "job-timeout", 0, "")

	mergeString(cmd, "vm", "FromFile", &vm)
	filepurge := false
	mergeBool(cmd, "purge", &filepurge, &purge)
	require.NoError(t, mergeDuration(cmd, "job-timeout", "90m", &timeout))

	assert.Equal(t, "FromFile", vm)
	assert.False(t, purge)
	assert.Equal(t, 90*time.Minute, timeout)
}

func TestMergeDurationRejectsGarbage(t *testing.T) {
	cmd := &cobra.Command{}
	var timeout time.Duration
	cmd.Flags().DurationVar(&timeout, "job-timeout", 0, "")

	err := mergeDuration(cmd, "job-timeout", "ninety minutes", &timeout)
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))
}
