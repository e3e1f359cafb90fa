package veeam

import (
	_ "embed"

	"github.com/vmshift/vmshift/internal/pscript"
)

const scriptVersion = "0.1"

var scriptname = "vbrlocate-" + scriptVersion + ".ps1"

//go:embed assets/vbrlocate.ps1
var script string

func newrunner() (pscript.Runner, error) {
	return pscript.New("vmshift-veeam", scriptname, script)
}
