package hyperv

import (
	_ "embed"

	"github.com/vmshift/vmshift/internal/pscript"
)

const scriptVersion = "0.1"

var scriptname = "hvexport-" + scriptVersion + ".ps1"

//go:embed assets/hvexport.ps1
var script string

func newrunner() (pscript.Runner, error) {
	return pscript.New("vmshift-hyperv", scriptname, script)
}
