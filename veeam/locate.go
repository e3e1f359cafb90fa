package veeam

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kuttiproject/kuttilog"
	"github.com/vmshift/vmshift/share"
	"github.com/vmshift/vmshift/wfault"
)

// Timestamp layout used in destination names, seconds granularity.
const timestamplayout = "20060102-150405"

// LocateConfig carries every input of a locate-and-copy run.
type LocateConfig struct {
	Server ServerConfig

	// VMName selects the VM by exact name. Ignored when ByIndex is set.
	VMName string
	// ByIndex selects the VM by its zero-based position in the
	// enumeration instead of by name.
	ByIndex bool
	// Index is the zero-based position used when ByIndex is set.
	Index int

	// DestinationRoot is the folder (usually a mounted share) the
	// backup is copied or archived into.
	DestinationRoot string
	// CreateArchive packs the backup into a single zip file instead of
	// copying the directory tree.
	CreateArchive bool
}

// LocateResult reports a completed locate-and-copy run.
type LocateResult struct {
	VM              VM
	Backup          BackupRecord
	SourcePath      string
	DestinationPath string
	Archived        bool
}

// LatestSuccessfulBackup returns the most recent record with a Success
// status, or nil when the history holds none. Ties on creation time
// are broken by path, descending.
func LatestSuccessfulBackup(records []BackupRecord) *BackupRecord {
	var latest *BackupRecord

	for i := range records {
		r := &records[i]
		if r.Status != BackupStatusSuccess {
			continue
		}
		if latest == nil || r.CreationTime.After(latest.CreationTime) {
			latest = r
			continue
		}
		if r.CreationTime.Equal(latest.CreationTime) && r.Path > latest.Path {
			latest = r
		}
	}

	return latest
}

// SelectVM picks one VM from the enumeration, by exact name or by
// zero-based index. A name with no match or an out-of-range index is a
// fatal input error.
func SelectVM(vms []VM, config LocateConfig) (*VM, error) {
	if config.ByIndex {
		if config.Index < 0 || config.Index >= len(vms) {
			return nil, wfault.New(wfault.KindPrecondition, "VM index %d out of range (0-%d)", config.Index, len(vms)-1)
		}
		return &vms[config.Index], nil
	}

	for i := range vms {
		if vms[i].Name == config.VMName {
			return &vms[i], nil
		}
	}

	return nil, wfault.New(wfault.KindPrecondition, "VM '%s' is not registered with the backup product", config.VMName)
}

// Locate resolves the latest successful backup of the selected VM and
// copies (or archives) it into the destination. The session token is
// released on every exit path; a failed release is reported as a
// warning and does not fail the run.
func (vc *Client) Locate(config LocateConfig) (result *LocateResult, err error) {
	session, err := vc.OpenSession(config.Server)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			kuttilog.Printf(0, "Warning: %v", cerr)
		}
	}()

	vms, err := session.ListVMs()
	if err != nil {
		return nil, err
	}

	vm, err := SelectVM(vms, config)
	if err != nil {
		return nil, err
	}

	records, err := session.Backups(vm.ID)
	if err != nil {
		return nil, err
	}

	record := LatestSuccessfulBackup(records)
	if record == nil {
		return nil, wfault.New(wfault.KindSelectionExhausted, "no successful backup exists for VM '%s'", vm.Name)
	}

	roots, err := session.StorageRoots()
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, wfault.New(wfault.KindPrecondition, "backup product reports no storage roots")
	}

	// Only the first configured root is consulted. The product may
	// report more, but merging roots is out of contract.
	sourcepath := filepath.Join(roots[0], record.Path)
	if _, err := os.Stat(sourcepath); err != nil {
		return nil, wfault.New(wfault.KindPrecondition, "backup path '%s' is not accessible: %v", sourcepath, err)
	}

	basename := fmt.Sprintf("%s_%s", vm.Name, record.CreationTime.Format(timestamplayout))

	var destination string
	if config.CreateArchive {
		destination = filepath.Join(config.DestinationRoot, basename+".zip")
		kuttilog.Printf(kuttilog.Info, "Archiving backup to '%v'...", destination)
		err = share.ZipDir(sourcepath, destination)
	} else {
		destination = filepath.Join(config.DestinationRoot, basename)
		kuttilog.Printf(kuttilog.Info, "Copying backup to '%v'...", destination)
		err = share.CopyDir(sourcepath, destination)
	}
	if err != nil {
		return nil, fmt.Errorf("could not transfer backup of '%s': %v", vm.Name, err)
	}

	return &LocateResult{
		VM:              *vm,
		Backup:          *record,
		SourcePath:      sourcepath,
		DestinationPath: destination,
		Archived:        config.CreateArchive,
	}, nil
}

// ListRegisteredVMs enumerates the VMs the backup product knows about,
// opening and releasing a session around the single call. The CLI uses
// it to display the numbered list index selection refers to.
func (vc *Client) ListRegisteredVMs(config ServerConfig) (vms []VM, err error) {
	session, err := vc.OpenSession(config)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			kuttilog.Printf(0, "Warning: %v", cerr)
		}
	}()

	return session.ListVMs()
}
