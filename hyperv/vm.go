package hyperv

import "time"

// VM state values as reported by Get-VM.
const (
	VMStateRunning = "Running"
	VMStateOff     = "Off"
	VMStateSaved   = "Saved"
)

// VM describes a virtual machine on the local Hyper-V host. It is
// owned by Hyper-V and read-only here.
type VM struct {
	Name       string
	State      string
	MemoryMB   int64
	Generation int
}

// Running reports whether the VM is currently running.
func (vm *VM) Running() bool {
	return vm.State == VMStateRunning
}

// Snapshot is a point-in-time checkpoint of a VM, usable as an export
// source.
type Snapshot struct {
	Name         string
	CreationTime time.Time
}
