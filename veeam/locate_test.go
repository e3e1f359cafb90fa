package veeam

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmshift/vmshift/internal/pscript"
	"github.com/vmshift/vmshift/wfault"
)

// fakerunner simulates the backup product's interface script.
type fakerunner struct {
	t *testing.T

	vms     []VM
	records []BackupRecord
	roots   []string

	failstartsession bool
	faillistvms      bool

	endsessioncalls int
	calls           []string
}

func payload(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func (fr *fakerunner) Run(args ...string) (*pscript.Result, error) {
	fr.calls = append(fr.calls, args[0])

	switch args[0] {
	case "startsession":
		if fr.failstartsession {
			return &pscript.Result{Success: false, ErrorMessage: "access denied"}, nil
		}
		return &pscript.Result{Success: true, Payload: payload(fr.t, map[string]string{"Token": "tok-1"})}, nil
	case "endsession":
		fr.endsessioncalls++
		return &pscript.Result{Success: true}, nil
	case "listvms":
		if fr.faillistvms {
			return nil, errors.New("pipe broken")
		}
		return &pscript.Result{Success: true, Payload: payload(fr.t, map[string]interface{}{"VMs": fr.vms})}, nil
	case "getbackups":
		return &pscript.Result{Success: true, Payload: payload(fr.t, map[string]interface{}{"Backups": fr.records})}, nil
	case "getstorageroots":
		return &pscript.Result{Success: true, Payload: payload(fr.t, map[string]interface{}{"Roots": fr.roots})}, nil
	}

	fr.t.Fatalf("unexpected verb %v", args[0])
	return nil, nil
}

func testclient(fr *fakerunner) *Client {
	return &Client{runner: func() (pscript.Runner, error) { return fr, nil }}
}

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestLatestSuccessfulBackup(t *testing.T) {
	records := []BackupRecord{
		{Status: BackupStatusFailed, CreationTime: ts("2024-02-01T00:00:00Z"), Path: "f1"},
		{Status: BackupStatusSuccess, CreationTime: ts("2024-01-01T00:00:00Z"), Path: "s1"},
		{Status: BackupStatusSuccess, CreationTime: ts("2024-01-02T00:00:00Z"), Path: "s2"},
		{Status: BackupStatusFailed, CreationTime: ts("2024-03-01T00:00:00Z"), Path: "f2"},
	}

	latest := LatestSuccessfulBackup(records)
	require.NotNil(t, latest)
	assert.Equal(t, "s2", latest.Path)
}

func TestLatestSuccessfulBackupNoneEligible(t *testing.T) {
	records := []BackupRecord{
		{Status: BackupStatusFailed, CreationTime: ts("2024-02-01T00:00:00Z")},
	}
	assert.Nil(t, LatestSuccessfulBackup(records))
	assert.Nil(t, LatestSuccessfulBackup(nil))
}

func TestSelectVMByIndexOutOfRange(t *testing.T) {
	vms := []VM{{Name: "a"}, {Name: "b"}}

	_, err := SelectVM(vms, LocateConfig{ByIndex: true, Index: 2})
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))

	_, err = SelectVM(vms, LocateConfig{ByIndex: true, Index: -1})
	require.Error(t, err)

	vm, err := SelectVM(vms, LocateConfig{ByIndex: true, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, "b", vm.Name)
}

func TestSelectVMByName(t *testing.T) {
	vms := []VM{{Name: "web-01"}, {Name: "db-01"}}

	vm, err := SelectVM(vms, LocateConfig{VMName: "db-01"})
	require.NoError(t, err)
	assert.Equal(t, "db-01", vm.Name)

	_, err = SelectVM(vms, LocateConfig{VMName: "db-02"})
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))
}

func TestLocateCopiesLatestSuccessfulBackup(t *testing.T) {
	root := t.TempDir()
	dest := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Alice_vm", "latest"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Alice_vm", "latest", "disk.vhdx"), []byte("data"), 0644))

	fr := &fakerunner{
		t:   t,
		vms: []VM{{Name: "Alice", ID: "vm-1"}},
		records: []BackupRecord{
			{Status: BackupStatusSuccess, CreationTime: ts("2024-01-01T00:00:00Z"), Path: "Alice_vm"},
			{Status: BackupStatusSuccess, CreationTime: ts("2024-01-03T12:30:00Z"), Path: "Alice_vm"},
		},
		roots: []string{root, "/ignored/second/root"},
	}

	result, err := testclient(fr).Locate(LocateConfig{
		VMName:          "Alice",
		DestinationRoot: dest,
	})
	require.NoError(t, err)

	assert.Equal(t, "Alice", result.VM.Name)
	assert.Equal(t, filepath.Join(root, "Alice_vm"), result.SourcePath)
	assert.Equal(t, filepath.Join(dest, "Alice_20240103-123000"), result.DestinationPath)
	assert.False(t, result.Archived)

	copied, err := os.ReadFile(filepath.Join(result.DestinationPath, "latest", "disk.vhdx"))
	require.NoError(t, err)
	assert.Equal(t, "data", string(copied))

	assert.Equal(t, 1, fr.endsessioncalls)
}

func TestLocateArchives(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Alice_vm"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "Alice_vm", "disk.vhdx"), []byte("data"), 0644))

	fr := &fakerunner{
		t:   t,
		vms: []VM{{Name: "Alice", ID: "vm-1"}},
		records: []BackupRecord{
			{Status: BackupStatusSuccess, CreationTime: ts("2024-01-03T12:30:00Z"), Path: "Alice_vm"},
		},
		roots: []string{root},
	}

	dest := t.TempDir()
	result, err := testclient(fr).Locate(LocateConfig{
		VMName:          "Alice",
		DestinationRoot: dest,
		CreateArchive:   true,
	})
	require.NoError(t, err)

	assert.True(t, result.Archived)
	assert.Equal(t, filepath.Join(dest, "Alice_20240103-123000.zip"), result.DestinationPath)
	info, err := os.Stat(result.DestinationPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestLocateNoSuccessfulBackupCopiesNothing(t *testing.T) {
	dest := t.TempDir()
	fr := &fakerunner{
		t:   t,
		vms: []VM{{Name: "Alice", ID: "vm-1"}},
		records: []BackupRecord{
			{Status: BackupStatusFailed, CreationTime: ts("2024-01-01T00:00:00Z")},
		},
		roots: []string{t.TempDir()},
	}

	_, err := testclient(fr).Locate(LocateConfig{
		VMName:          "Alice",
		DestinationRoot: dest,
	})
	require.Error(t, err)
	assert.Equal(t, wfault.KindSelectionExhausted, wfault.KindOf(err))

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The storage roots are never consulted once selection fails.
	assert.NotContains(t, fr.calls, "getstorageroots")
	assert.Equal(t, 1, fr.endsessioncalls)
}

func TestInterfaceScriptReportsRepositoryRelativePaths(t *testing.T) {
	// Locate joins each record's Path onto the first storage root, so
	// the interface script must report paths without the repository
	// prefix or the join would double the root.
	assert.Contains(t, script, `Path         = "$($_.GetBackup().Name)"`)
	assert.NotContains(t, script, `FriendlyPath)\$`)
}

func TestSessionReleasedExactlyOnceWhenEnumerationFails(t *testing.T) {
	fr := &fakerunner{t: t, faillistvms: true}

	_, err := testclient(fr).Locate(LocateConfig{
		VMName:          "Alice",
		DestinationRoot: t.TempDir(),
	})
	require.Error(t, err)
	assert.Equal(t, 1, fr.endsessioncalls)
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	fr := &fakerunner{t: t}

	session, err := testclient(fr).OpenSession(ServerConfig{Server: "vbr01"})
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 1, fr.endsessioncalls)

	_, err = session.ListVMs()
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))
}

func TestOpenSessionAuthFailure(t *testing.T) {
	fr := &fakerunner{t: t, failstartsession: true}

	_, err := testclient(fr).OpenSession(ServerConfig{Server: "vbr01"})
	require.Error(t, err)
	assert.Equal(t, wfault.KindPrecondition, wfault.KindOf(err))
	assert.Zero(t, fr.endsessioncalls)
}
