// Package share manages access to the network destination the workflows
// copy artifacts to, and provides the filesystem primitives they share:
// recursive copy, recursive delete by prefix, byte-size aggregation and
// zip archiving.
//
// A share is reachable in one of two modes. In pre-authorized mode the
// operator's own identity already has access, and connecting only
// verifies the path. In credentialed mode the share is mounted with an
// explicit username and password, and must be unmounted afterwards.
// Unmounting is keyed only by path, so two workflows must not manage the
// same share path concurrently.
package share

import (
	"fmt"
	"os"

	"github.com/kuttiproject/workspace"
)

// MountMode selects how a share is made reachable.
type MountMode string

const (
	// ModePreAuthorized means the path is already accessible under the
	// operator's identity; no mount or unmount is performed.
	ModePreAuthorized MountMode = "preauthorized"
	// ModeCredentialed means the share is mounted with explicit
	// credentials and unmounted when the workflow finishes.
	ModeCredentialed MountMode = "credentialed"
)

// Credentials is the username/password pair for credentialed mounts.
type Credentials struct {
	Username string
	Password string
}

// Mount is a connected share. Disconnect must be called for credentialed
// mounts on every exit path; for pre-authorized mounts it is a no-op.
type Mount struct {
	path    string
	mode    MountMode
	mounted bool
}

// Path returns the share path this mount refers to.
func (m *Mount) Path() string {
	return m.path
}

// Connect makes the share path reachable.
// In credentialed mode it runs the command:
//
//	net use <path> <password> /user:<username>
//
// In pre-authorized mode it only checks that the path exists.
func Connect(path string, mode MountMode, creds Credentials) (*Mount, error) {
	if mode == ModeCredentialed {
		_, err := workspace.RunWithResults(
			"net",
			"use",
			path,
			creds.Password,
			"/user:"+creds.Username,
		)
		if err != nil {
			return nil, fmt.Errorf("could not mount share '%s': %v", path, err)
		}

		return &Mount{path: path, mode: mode, mounted: true}, nil
	}

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("share path '%s' is not accessible: %v", path, err)
	}

	return &Mount{path: path, mode: mode}, nil
}

// Disconnect removes a credentialed mount.
// It does this by running the command:
//
//	net use <path> /delete /y
//
// Failure to unmount is a cleanup condition for the caller to report,
// never a reason to fail the workflow.
func (m *Mount) Disconnect() error {
	if !m.mounted {
		return nil
	}

	_, err := workspace.RunWithResults("net", "use", m.path, "/delete", "/y")
	if err != nil {
		return fmt.Errorf("could not unmount share '%s': %v", m.path, err)
	}

	m.mounted = false
	return nil
}
