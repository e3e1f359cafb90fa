package main

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vmshift/vmshift/hyperv"
	"github.com/vmshift/vmshift/share"
)

func exportCmd() *cobra.Command {
	var (
		exportconfig hyperv.ExportConfig
		sharecreds   share.Credentials
		credentialed bool
		jobtimeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a Hyper-V VM's disk images to the destination share",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileconfig, err := loadFileConfig(configpath)
			if err != nil {
				return err
			}

			mergeString(cmd, "vm", fileconfig.Export.VM, &exportconfig.VMName)
			mergeString(cmd, "destination", fileconfig.Export.Destination, &exportconfig.DestinationRoot)
			mergeString(cmd, "prefix", fileconfig.Export.Prefix, &exportconfig.Prefix)
			mergeBool(cmd, "prefer-snapshot", fileconfig.Export.PreferSnapshot, &exportconfig.PreferSnapshot)
			mergeBool(cmd, "use-vss", fileconfig.Export.UseVSS, &exportconfig.UseVSS)
			mergeBool(cmd, "purge", fileconfig.Export.Purge, &exportconfig.PurgePrior)
			if err := mergeDuration(cmd, "job-timeout", fileconfig.Export.JobTimeout, &jobtimeout); err != nil {
				return err
			}
			mergeBool(cmd, "mount", fileconfig.Share.Credentialed, &credentialed)
			mergeString(cmd, "share-user", fileconfig.Share.Username, &sharecreds.Username)
			mergeString(cmd, "share-password", fileconfig.Share.Password, &sharecreds.Password)

			if err := requireflag(exportconfig.VMName, "vm"); err != nil {
				return err
			}
			if err := requireflag(exportconfig.DestinationRoot, "destination"); err != nil {
				return err
			}

			exportconfig.JobTimeout = jobtimeout

			mode := share.ModePreAuthorized
			if credentialed {
				mode = share.ModeCredentialed
			}
			mount, err := share.Connect(exportconfig.DestinationRoot, mode, sharecreds)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := mount.Disconnect(); cerr != nil {
					log.Warnf("cleanup: %v", cerr)
				}
			}()

			result, err := hyperv.New().Export(exportconfig)
			if err != nil {
				return err
			}

			log.Infof("Export strategy: %v", result.Strategy)
			if result.UsedSnapshot {
				log.Infof("Exported from snapshot '%v'", result.SnapshotName)
			}
			log.Infof("Export path: %v (%v bytes)", result.ExportPath, result.TotalBytes)
			for _, disk := range result.DiskImages {
				log.Infof("Disk image: %v", disk)
			}

			success("")
			if len(result.DiskImages) > 0 {
				log.Infof("Next step, on the Proxmox node:")
				log.Infof("  vmshift import --vmid <vmid> --pool <pool> --source %q", result.DiskImages[0])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exportconfig.VMName, "vm", "", "Hyper-V VM name")
	cmd.Flags().StringVar(&exportconfig.DestinationRoot, "destination", "", "destination folder (usually a share path)")
	cmd.Flags().StringVar(&exportconfig.Prefix, "prefix", "HyperV_Export", "export folder naming prefix")
	cmd.Flags().BoolVar(&exportconfig.PreferSnapshot, "prefer-snapshot", true, "export from the latest checkpoint when one exists")
	cmd.Flags().BoolVar(&exportconfig.UseVSS, "use-vss", true, "shadow-copy export when the VM is running")
	cmd.Flags().BoolVar(&exportconfig.PurgePrior, "purge", true, "delete prior exports with the same prefix and VM name")
	cmd.Flags().DurationVar(&jobtimeout, "job-timeout", 0, "cap the shadow-copy job wait (0 waits forever)")
	cmd.Flags().BoolVar(&credentialed, "mount", false, "mount the destination share with explicit credentials")
	cmd.Flags().StringVar(&sharecreds.Username, "share-user", "", "share username (with --mount)")
	cmd.Flags().StringVar(&sharecreds.Password, "share-password", "", "share password (with --mount)")

	return cmd
}
