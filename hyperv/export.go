package hyperv

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/kuttiproject/kuttilog"
	"github.com/vmshift/vmshift/share"
	"github.com/vmshift/vmshift/wfault"
)

// Timestamp layout used in export folder names, seconds granularity.
const timestamplayout = "20060102-150405"

// ExportConfig carries every input of an export run.
type ExportConfig struct {
	// VMName is the Hyper-V name of the VM to export.
	VMName string
	// DestinationRoot is the folder (usually a mounted share) the
	// export folder is created under.
	DestinationRoot string
	// Prefix is the naming prefix of the export folder.
	Prefix string
	// PreferSnapshot exports from the latest checkpoint when one exists.
	PreferSnapshot bool
	// UseVSS uses a shadow-copy export when the VM is running.
	UseVSS bool
	// PurgePrior deletes earlier export folders with the same prefix
	// and VM name before exporting.
	PurgePrior bool
	// JobTimeout caps the wait for an asynchronous shadow-copy export
	// job. Zero means wait forever, which matches the historical
	// behavior of the workflow.
	JobTimeout time.Duration
}

// ExportResult reports a completed export. It is only returned on full
// success; a failed run produces an error and no result.
type ExportResult struct {
	ExportPath   string
	Strategy     Strategy
	TotalBytes   int64
	DiskImages   []string
	UsedSnapshot bool
	SnapshotName string
}

// Export runs the export workflow for one VM: resolve the VM and its
// checkpoints, choose a strategy, optionally purge prior exports with
// the same prefix, export, and enumerate the produced disk images.
func (vd *Driver) Export(config ExportConfig) (*ExportResult, error) {
	vm, err := vd.GetVM(config.VMName)
	if err != nil {
		return nil, err
	}

	snapshots, err := vd.ListSnapshots(vm.Name)
	if err != nil {
		return nil, err
	}

	strategy, snapshot := ChooseStrategy(vm, snapshots, config.PreferSnapshot, config.UseVSS)

	foldername := fmt.Sprintf("%s_%s_%s", config.Prefix, vm.Name, time.Now().Format(timestamplayout))
	exportpath := filepath.Join(config.DestinationRoot, foldername)

	if config.PurgePrior {
		kuttilog.Println(kuttilog.Info, "Purging prior exports...")
		pattern := fmt.Sprintf("%s_%s_*", config.Prefix, vm.Name)
		removed, warnings := share.Purge(config.DestinationRoot, pattern)
		for _, path := range removed {
			kuttilog.Printf(kuttilog.Debug, "Deleted prior export '%v'", path)
		}
		for _, warning := range warnings {
			kuttilog.Printf(0, "Warning: %v", warning)
		}
	}

	switch strategy {
	case StrategySnapshot:
		kuttilog.Printf(kuttilog.Info, "Exporting from snapshot '%v'...", snapshot.Name)
		err = vd.exportsnapshot(vm.Name, snapshot.Name, exportpath)
	case StrategyLiveVSS:
		kuttilog.Println(kuttilog.Info, "Exporting running VM via shadow copy...")
		err = vd.exportvmvss(vm.Name, exportpath, config.JobTimeout)
	default:
		kuttilog.Println(kuttilog.Info, "Exporting VM...")
		err = vd.exportvm(vm.Name, exportpath)
	}
	if err != nil {
		return nil, err
	}

	totalbytes, err := share.DirSize(exportpath)
	if err != nil {
		return nil, fmt.Errorf("could not measure export '%s': %v", exportpath, err)
	}

	diskimages, err := share.FilesWithExt(exportpath, ".vhdx")
	if err != nil {
		return nil, err
	}
	legacydisks, err := share.FilesWithExt(exportpath, ".vhd")
	if err != nil {
		return nil, err
	}
	diskimages = append(diskimages, legacydisks...)

	result := &ExportResult{
		ExportPath: exportpath,
		Strategy:   strategy,
		TotalBytes: totalbytes,
		DiskImages: diskimages,
	}
	if snapshot != nil {
		result.UsedSnapshot = true
		result.SnapshotName = snapshot.Name
	}

	kuttilog.Printf(kuttilog.Info, "Exported %v bytes to '%v'", totalbytes, exportpath)

	return result, nil
}

// exportsnapshot exports a checkpoint.
// It does this by running the Cmdlet:
//
//	Export-VMSnapshot -VMName <vmname> -Name <snapshotname> -Path <path>
//
// through the interface script.
func (vd *Driver) exportsnapshot(vmname string, snapshotname string, path string) error {
	output, err := vd.runner.Run("exportsnapshot", vmname, snapshotname, path)
	if err != nil {
		return wfault.New(wfault.KindExternalCommand, "could not export snapshot '%s' of '%s': %v", snapshotname, vmname, err)
	}

	if !output.Success {
		return wfault.New(wfault.KindExternalCommand, "could not export snapshot '%s' of '%s': %v", snapshotname, vmname, output.ErrorMessage)
	}

	return nil
}

// exportvm exports the VM as-is.
// It does this by running the Cmdlet:
//
//	Export-VM -Name <vmname> -Path <path>
//
// through the interface script.
func (vd *Driver) exportvm(vmname string, path string) error {
	output, err := vd.runner.Run("exportvm", vmname, path)
	if err != nil {
		return wfault.New(wfault.KindExternalCommand, "could not export VM '%s': %v", vmname, err)
	}

	if !output.Success {
		return wfault.New(wfault.KindExternalCommand, "could not export VM '%s': %v", vmname, output.ErrorMessage)
	}

	return nil
}

// exportvmvss exports a running VM through a shadow copy. The export
// runs as a background job at the vendor layer.
// It starts the job by running the Cmdlet:
//
//	Export-VM -Name <vmname> -Path <path> -CaptureLiveState CaptureCrashConsistentState -AsJob
//
// through the interface script, then polls the job every two seconds
// until it stops running. A job that finishes with a non-empty output
// payload has failed; the payload is surfaced as the error detail.
func (vd *Driver) exportvmvss(vmname string, path string, timeout time.Duration) error {
	output, err := vd.runner.Run("exportvmvss", vmname, path)
	if err != nil {
		return wfault.New(wfault.KindExternalCommand, "could not start shadow-copy export of '%s': %v", vmname, err)
	}

	if !output.Success {
		return wfault.New(wfault.KindExternalCommand, "could not start shadow-copy export of '%s': %v", vmname, output.ErrorMessage)
	}

	var job struct {
		JobID string
	}
	err = json.Unmarshal(output.Payload, &job)
	if err != nil {
		return fmt.Errorf("could not decode export job of '%s': %v", vmname, err)
	}

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		state, payload, err := vd.getjob(job.JobID)
		if err != nil {
			return err
		}

		if state != "Running" {
			if payload != "" {
				return wfault.New(wfault.KindExternalCommand, "export job for '%s' failed: %v", vmname, payload)
			}
			return nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return wfault.New(wfault.KindExternalCommand, "export job for '%s' did not finish within %v", vmname, timeout)
		}

		kuttilog.Println(kuttilog.Debug, "Export job still running...")
		time.Sleep(vd.pollinterval)
	}
}

// getjob fetches the state and accumulated output of a background job.
// It does this by running the Cmdlets:
//
//	Get-Job -Id <jobid>
//	Receive-Job -Id <jobid> -Keep
//
// through the interface script.
func (vd *Driver) getjob(jobid string) (state string, payload string, err error) {
	output, err := vd.runner.Run("getjob", jobid)
	if err != nil {
		return "", "", wfault.New(wfault.KindExternalCommand, "could not query export job %s: %v", jobid, err)
	}

	if !output.Success {
		return "", "", wfault.New(wfault.KindExternalCommand, "could not query export job %s: %v", jobid, output.ErrorMessage)
	}

	var jobstatus struct {
		State  string
		Output string
	}
	err = json.Unmarshal(output.Payload, &jobstatus)
	if err != nil {
		return "", "", fmt.Errorf("could not decode job status: %v", err)
	}

	return jobstatus.State, jobstatus.Output, nil
}
