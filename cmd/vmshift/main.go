// vmshift moves Hyper-V virtual machine disk images to a network share
// and imports them into Proxmox VE storage. Each subcommand is one
// operator-run workflow; hand-off between them is manual, by path.
package main

import (
	"os"

	"github.com/kuttiproject/kuttilog"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vmshift/vmshift/wfault"
)

var (
	configpath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:           "vmshift",
	Short:         "Move Hyper-V and Veeam disk images into Proxmox VE",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
		if verbose {
			log.SetLevel(log.DebugLevel)
			kuttilog.SetLogLevel(kuttilog.Debug)
		} else {
			kuttilog.SetLogLevel(kuttilog.Info)
		}
	},
}

// fail prints the error with its classification banner and terminates
// with the exit code belonging to the failure kind. Errors are caught
// exactly once, here.
func fail(err error) {
	log.Error(err)
	log.Errorf("==== ERROR: %v ====", wfault.KindOf(err))
	os.Exit(wfault.ExitCodeOf(err))
}

func success(message string) {
	log.Info("==== SUCCESS ====")
	if message != "" {
		log.Info(message)
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configpath, "config", "", "optional YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(locateCmd())
	rootCmd.AddCommand(importCmd())

	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}
