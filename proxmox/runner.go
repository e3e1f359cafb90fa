// Package proxmox imports a disk image into Proxmox VE storage and
// attaches it to a target VM as the primary boot disk. Everything is
// orchestrated through the qm CLI on the Proxmox node, either invoked
// locally or over SSH, behind a Runner interface so the free-text
// output parsing stays unit-testable without a node.
package proxmox

import (
	"strings"

	"github.com/kuttiproject/sshclient"
	"github.com/kuttiproject/workspace"
)

// Runner executes one qm command on the Proxmox node and returns its
// output. A non-zero exit reports as a non-nil error.
type Runner interface {
	Run(args ...string) (string, error)
}

// LocalRunner runs qm directly, for use on the Proxmox node itself.
type LocalRunner struct {
	// QMPath overrides the qm binary path. Empty means "qm".
	QMPath string
}

// Run invokes qm with the given arguments.
func (lr *LocalRunner) Run(args ...string) (string, error) {
	qmpath := lr.QMPath
	if qmpath == "" {
		qmpath = "qm"
	}
	return workspace.RunWithResults(qmpath, args...)
}

// SSHRunner runs qm on a remote Proxmox node over SSH with password
// authentication.
type SSHRunner struct {
	// Address is the node's SSH endpoint, host:port.
	Address  string
	Username string
	Password string
}

// Run invokes qm on the remote node.
func (sr *SSHRunner) Run(args ...string) (string, error) {
	client := sshclient.NewWithPassword(sr.Username, sr.Password)
	command := strings.Join(append([]string{"qm"}, args...), " ")
	return client.RunWithResults(sr.Address, command)
}
