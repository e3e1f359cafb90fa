// Package pscript runs vendor operations through an embedded PowerShell
// interface script. Each script verb prints exactly one JSON envelope
// with a success flag, an error message and a verb-specific payload,
// which keeps free-text cmdlet output out of the Go side entirely.
package pscript

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kuttiproject/workspace"
)

// Result is the envelope every interface script verb prints.
type Result struct {
	Success      bool
	ErrorMessage string
	Payload      json.RawMessage
}

// Runner runs one verb of an interface script. Tests substitute fakes;
// production uses PowerShell.
type Runner interface {
	Run(args ...string) (*Result, error)
}

// PowerShellRunner invokes an interface script through PowerShell and
// decodes the JSON envelope it prints.
type PowerShellRunner struct {
	powershellpath string
	scriptpath     string
}

func findPowerShell() (string, error) {
	// First, try looking up Windows PowerShell on the path
	toolpath, err := exec.LookPath("powershell.exe")
	if err == nil {
		return toolpath, nil
	}

	// If not, look for cross-platform PowerShell
	toolpath, err = exec.LookPath("pwsh.exe")
	if err == nil {
		return toolpath, nil
	}

	return "", errors.New("PowerShell not found")
}

func findScript(cachesubdir string, scriptname string, scriptbody string) (string, error) {
	scriptdir, err := workspace.CacheSubDir(cachesubdir)
	if err != nil {
		return "", fmt.Errorf("could not find script: %v", err.Error())
	}

	scriptpath := filepath.Join(scriptdir, scriptname)
	if _, err := os.Stat(scriptpath); err != nil {
		err = writeScript(scriptpath, scriptbody)
		if err != nil {
			return "", err
		}
	}

	return scriptpath, nil
}

func writeScript(scriptpath string, scriptbody string) error {
	scriptFile, err := os.Create(scriptpath)
	if err != nil {
		return err
	}

	defer scriptFile.Close()

	_, err = scriptFile.WriteString(scriptbody)
	if err != nil {
		return err
	}

	return nil
}

// New locates PowerShell and materializes the script body under the
// named workspace cache subdirectory, writing it only if a copy is not
// already present.
func New(cachesubdir string, scriptname string, scriptbody string) (*PowerShellRunner, error) {
	pspath, err := findPowerShell()
	if err != nil {
		return nil, err
	}

	scriptpath, err := findScript(cachesubdir, scriptname, scriptbody)
	if err != nil {
		return nil, err
	}

	return &PowerShellRunner{
		powershellpath: pspath,
		scriptpath:     scriptpath,
	}, nil
}

// Run invokes one verb of the interface script.
func (pr *PowerShellRunner) Run(args ...string) (*Result, error) {
	powershellargs := []string{
		"-NoProfile",
		"-NonInteractive",
		"-File",
		pr.scriptpath,
	}
	powershellargs = append(powershellargs, args...)
	resultstring, err := workspace.RunWithResults(pr.powershellpath, powershellargs...)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	err = json.Unmarshal([]byte(resultstring), result)
	if err != nil {
		return nil, err
	}

	return result, nil
}
