// Package veeam locates the latest successful backup of a VM in a
// Veeam Backup & Replication installation and copies it to a network
// destination. It talks to the product's PowerShell module via an
// interface script, the same envelope contract the hyperv package uses.
//
// All product operations run inside a session. The session token is
// acquired once per run and must be released on every exit path; the
// workflow in this package guarantees that with a deferred Close.
package veeam

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vmshift/vmshift/internal/pscript"
	"github.com/vmshift/vmshift/wfault"
)

// ServerConfig identifies the backup server and the account used to
// authenticate against it.
type ServerConfig struct {
	Server   string
	Username string
	Password string
}

// VM is a machine registered with the backup product.
type VM struct {
	Name string
	ID   string
}

// Backup record result statuses as reported by the product.
const (
	BackupStatusSuccess = "Success"
	BackupStatusFailed  = "Failed"
)

// BackupRecord is one entry of a VM's backup history. Path is relative
// to the product's first configured storage root.
type BackupRecord struct {
	Status       string
	CreationTime time.Time
	Path         string
}

// Session is an authenticated connection to the backup server.
// Close releases the session token; it is safe to call more than once
// but releases the token only on the first call.
type Session struct {
	runner pscript.Runner
	token  string
	closed bool
}

// Client talks to the local Veeam installation.
type Client struct {
	runner scriptRunnerFunc
}

type scriptRunnerFunc func() (pscript.Runner, error)

// NewClient creates a Client that invokes the product's PowerShell
// module through the embedded interface script.
func NewClient() *Client {
	return &Client{runner: newrunner}
}

// OpenSession authenticates against the backup server.
// It does this by running the Cmdlet:
//
//	Connect-VBRServer -Server <server> -User <user> -Password <password>
//
// through the interface script, which returns a session token.
func (vc *Client) OpenSession(config ServerConfig) (*Session, error) {
	runner, err := vc.runner()
	if err != nil {
		return nil, wfault.New(wfault.KindPrecondition, "backup product interface not usable: %v", err)
	}

	output, err := runner.Run("startsession", config.Server, config.Username, config.Password)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not connect to backup server '%s': %v", config.Server, err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindPrecondition, "could not connect to backup server '%s': %v", config.Server, output.ErrorMessage)
	}

	var payload struct {
		Token string
	}
	err = json.Unmarshal(output.Payload, &payload)
	if err != nil || payload.Token == "" {
		return nil, fmt.Errorf("could not decode session token: %v", err)
	}

	return &Session{runner: runner, token: payload.Token}, nil
}

// Close releases the session token.
// It does this by running the Cmdlet:
//
//	Disconnect-VBRServer
//
// through the interface script. A failed release is a cleanup
// condition for the caller to report, never a workflow failure.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	output, err := s.runner.Run("endsession", s.token)
	if err != nil {
		return fmt.Errorf("could not release backup session: %v", err)
	}
	if !output.Success {
		return fmt.Errorf("could not release backup session: %v", output.ErrorMessage)
	}

	return nil
}

func (s *Session) guard() error {
	if s.closed {
		return wfault.New(wfault.KindPrecondition, "backup session already closed")
	}
	return nil
}

// ListVMs enumerates the machines registered with the backup product.
// It does this by running the Cmdlet:
//
//	Find-VBRHvEntity -Server <server>
//
// through the interface script.
func (s *Session) ListVMs() ([]VM, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	output, err := s.runner.Run("listvms", s.token)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not enumerate VMs: %v", err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindExternalCommand, "could not enumerate VMs: %v", output.ErrorMessage)
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

// Backups returns the backup history of a VM.
// It does this by running the Cmdlets:
//
//	Get-VBRBackup | Get-VBRRestorePoint -ObjectId <vmid>
//
// through the interface script.
func (s *Session) Backups(vmid string) ([]BackupRecord, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	output, err := s.runner.Run("getbackups", s.token, vmid)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not fetch backup history: %v", err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindExternalCommand, "could not fetch backup history: %v", output.ErrorMessage)
	}

	var payload struct {
		Backups []BackupRecord
	}
	err = json.Unmarshal(output.Payload, &payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode backup history: %v", err)
	}

	return payload.Backups, nil
}

// StorageRoots returns the product's configured backup repositories,
// in the order the product reports them.
// It does this by running the Cmdlet:
//
//	Get-VBRBackupRepository
//
// through the interface script.
func (s *Session) StorageRoots() ([]string, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}

	output, err := s.runner.Run("getstorageroots", s.token)
	if err != nil {
		return nil, wfault.New(wfault.KindExternalCommand, "could not fetch storage roots: %v", err)
	}

	if !output.Success {
		return nil, wfault.New(wfault.KindExternalCommand, "could not fetch storage roots: %v", output.ErrorMessage)
	}

	var payload struct {
		Roots []string
	}
	err = json.Unmarshal(output.Payload, &payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode storage roots: %v", err)
	}

	return payload.Roots, nil
}
