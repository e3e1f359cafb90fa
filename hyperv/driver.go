// Package hyperv exports virtual machine disk images from a local
// Hyper-V host. It uses the Hyper-V PowerShell module to talk to
// Hyper-V, invoking Cmdlets from the module via an interface script.
//
// An export run picks exactly one of three strategies: export from the
// most recent checkpoint, shadow-copy export of a running VM, or a
// standard export. The choice is deterministic and is never retried
// with a different strategy on failure.
package hyperv

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmshift/vmshift/internal/pscript"
	"github.com/vmshift/vmshift/wfault"
)

const defaultpollinterval = 2 * time.Second

// Driver talks to the local Hyper-V host.
type Driver struct {
	runner       pscript.Runner
	pollinterval time.Duration
	validated    bool
	status       string
	errormessage string
}

// New creates a Driver. The driver validates itself lazily on first
// use: it locates PowerShell, materializes the interface script, and
// checks that the Hyper-V module is usable under the current identity.
func New() *Driver {
	return &Driver{pollinterval: defaultpollinterval}
}

func (vd *Driver) validate() bool {
	if vd.validated {
		return true
	}

	if vd.runner == nil {
		runner, err := newrunner()
		if err != nil {
			vd.status = "Error"
			vd.errormessage = err.Error()
			return false
		}
		vd.runner = runner
	}

	// Check that the Hyper-V module is present and the caller is
	// elevated. Runs the Cmdlet:
	//   Get-Module -ListAvailable -Name Hyper-V
	driverstatus, err := vd.runner.Run("checkmodule")
	if err != nil {
		vd.status = "Error"
		vd.errormessage = err.Error()
		return false
	}

	if !driverstatus.Success {
		vd.status = "Error"
		vd.errormessage = driverstatus.ErrorMessage
		return false
	}

	vd.status = "Ready"
	vd.validated = true
	return true
}

// Status returns current driver status.
func (vd *Driver) Status() string {
	vd.validate()
	return vd.status
}

func (vd *Driver) precondition() error {
	if !vd.validate() {
		return wfault.New(wfault.KindPrecondition, "Hyper-V driver not usable: %v", vd.errormessage)
	}
	return nil
}

// GetVM returns the named VM.
// It does this by running the Cmdlet:
//
//	Get-VM -Name <vmname>
//
// through the interface script. A missing VM is a fatal precondition
// failure; it is never retried.
func (vd *Driver) GetVM(vmname string) (*VM, error) {
	if err := vd.precondition(); err != nil {
		return nil, err
	}

	output, err := vd.runner.Run("getvm", vmname)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not query VM '%s': %v", vmname, err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindPrecondition, "VM '%s' not found: %v", vmname, output.ErrorMessage)
	}

	vm := &VM{}
	err = json.Unmarshal(output.Payload, vm)
	if err != nil {
		return nil, fmt.Errorf("could not decode VM '%s': %v", vmname, err)
	}

	return vm, nil
}

// ListVMs returns all VMs registered on the local host.
// It does this by running the Cmdlet:
//
//	Get-VM
//
// through the interface script.
func (vd *Driver) ListVMs() ([]VM, error) {
	if err := vd.precondition(); err != nil {
		return nil, err
	}

	output, err := vd.runner.Run("listvms")
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not get list of VMs: %v", err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindExternalCommand, "could not get list of VMs: %v", output.ErrorMessage)
	}

	var payload struct {
		VMs []VM
	}
	err = json.Unmarshal(output.Payload, &payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode VM list: %v", err)
	}

	return payload.VMs, nil
}

// ListSnapshots returns the checkpoints of the named VM.
// It does this by running the Cmdlet:
//
//	Get-VMSnapshot -VMName <vmname>
//
// through the interface script.
func (vd *Driver) ListSnapshots(vmname string) ([]Snapshot, error) {
	if err := vd.precondition(); err != nil {
		return nil, err
	}

	output, err := vd.runner.Run("listsnapshots", vmname)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not list snapshots of '%s': %v", vmname, err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindExternalCommand, "could not list snapshots of '%s': %v", vmname, output.ErrorMessage)
	}

	var payload struct {
		Snapshots []Snapshot
	}
	err = json.Unmarshal(output.Payload, &payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode snapshots of '%s': %v", vmname, err)
	}

	return payload.Snapshots, nil
}
