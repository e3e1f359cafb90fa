package proxmox

import (
	"os"
	"strconv"

	"github.com/kuttiproject/kuttilog"
	"github.com/vmshift/vmshift/wfault"
)

// ImportConfig carries every input of a disk import run.
type ImportConfig struct {
	// VMID is the numeric id of the target VM definition.
	VMID int
	// Pool is the storage pool the image is imported into.
	Pool string
	// Slot is the attachment slot the disk ends up on, e.g. "scsi0".
	Slot string
	// SourcePath is the disk image file on a location the node can read.
	SourcePath string
}

// ImportResult reports a completed import.
type ImportResult struct {
	// UnusedKey is the temporary config entry the import created.
	UnusedKey string
	// VolumeID is the imported volume, e.g. "local-lvm:vm-100-disk-2".
	VolumeID string
	// Slot is the attachment slot the volume was attached to.
	Slot string
}

// Importer runs the import workflow against one Proxmox node.
type Importer struct {
	runner Runner
}

// NewImporter creates an Importer on the given runner.
func NewImporter(runner Runner) *Importer {
	return &Importer{runner: runner}
}

// Import verifies the source image, frees the target attachment slot,
// imports the image into the pool, and attaches the new volume as the
// first boot device.
//
// Detach errors are swallowed: the slot may legitimately be empty.
// Import and attach failures are fatal; the freed slot is not restored.
func (im *Importer) Import(config ImportConfig) (*ImportResult, error) {
	info, err := os.Stat(config.SourcePath)
	if err != nil {
		return nil, wfault.New(wfault.KindPrecondition, "source image '%s' not found: %v", config.SourcePath, err)
	}
	if info.Size() == 0 {
		return nil, wfault.New(wfault.KindPrecondition, "source image '%s' is empty", config.SourcePath)
	}

	vmid := strconv.Itoa(config.VMID)

	// Free the slot. Runs the commands:
	//   qm set <vmid> --delete <slot>
	//   qm unlink <vmid> --idlist <slot> --force
	kuttilog.Printf(kuttilog.Info, "Detaching any disk at %v...", config.Slot)
	_, err = im.runner.Run("set", vmid, "--delete", config.Slot)
	if err != nil {
		kuttilog.Printf(kuttilog.Debug, "Detach skipped: %v", err)
	}
	_, err = im.runner.Run("unlink", vmid, "--idlist", config.Slot, "--force")
	if err != nil {
		kuttilog.Printf(kuttilog.Debug, "Unlink skipped: %v", err)
	}

	// Import the image. Runs the command:
	//   qm importdisk <vmid> <image> <pool>
	kuttilog.Printf(kuttilog.Info, "Importing '%v' into pool '%v'...", config.SourcePath, config.Pool)
	output, err := im.runner.Run("importdisk", vmid, config.SourcePath, config.Pool)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not import disk '%s': %v", config.SourcePath, err)
	}

	unusedkey, volumeid, err := ParseImportedDisk(output)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not identify imported disk: %v", err)
	}

	if volumeid == "" {
		configoutput, err := im.runner.Run("config", vmid)
		if err != nil {
			return nil, wfault.New(wfault.KindExternalCommand, "could not read config of VM %s: %v", vmid, err)
		}
		volumeid, err = ResolveUnusedVolume(configoutput, unusedkey)
		if err != nil {
			return nil, wfault.New(wfault.KindExternalCommand, "could not identify imported disk: %v", err)
		}
	}

	// Attach and set boot order. Runs the commands:
	//   qm set <vmid> --<slot> <volumeid>
	//   qm set <vmid> --boot order=<slot>
	kuttilog.Printf(kuttilog.Info, "Attaching '%v' at %v...", volumeid, config.Slot)
	_, err = im.runner.Run("set", vmid, "--"+config.Slot, volumeid)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not attach disk '%s': %v", volumeid, err)
	}

	_, err = im.runner.Run("set", vmid, "--boot", "order="+config.Slot)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not set boot order for VM %s: %v", vmid, err)
	}

	kuttilog.Printf(kuttilog.Info, "Disk attached to VM %v at %v", vmid, config.Slot)

	return &ImportResult{
		UnusedKey: unusedkey,
		VolumeID:  volumeid,
		Slot:      config.Slot,
	}, nil
}
