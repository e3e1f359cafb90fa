package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vmshift/vmshift/share"
	"github.com/vmshift/vmshift/veeam"
)

func locateCmd() *cobra.Command {
	var (
		locateconfig veeam.LocateConfig
		sharecreds   share.Credentials
		credentialed bool
		listonly     bool
	)

	cmd := &cobra.Command{
		Use:   "locate-backup",
		Short: "Copy the latest successful Veeam backup of a VM to the destination share",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileconfig, err := loadFileConfig(configpath)
			if err != nil {
				return err
			}

			mergeString(cmd, "server", fileconfig.Locate.Server, &locateconfig.Server.Server)
			mergeString(cmd, "user", fileconfig.Locate.Username, &locateconfig.Server.Username)
			mergeString(cmd, "password", fileconfig.Locate.Password, &locateconfig.Server.Password)
			mergeString(cmd, "vm", fileconfig.Locate.VM, &locateconfig.VMName)
			mergeString(cmd, "destination", fileconfig.Locate.Destination, &locateconfig.DestinationRoot)
			mergeBool(cmd, "archive", fileconfig.Locate.Archive, &locateconfig.CreateArchive)
			mergeBool(cmd, "mount", fileconfig.Share.Credentialed, &credentialed)
			mergeString(cmd, "share-user", fileconfig.Share.Username, &sharecreds.Username)
			mergeString(cmd, "share-password", fileconfig.Share.Password, &sharecreds.Password)

			if err := requireflag(locateconfig.Server.Server, "server"); err != nil {
				return err
			}

			client := veeam.NewClient()

			if listonly {
				vms, err := client.ListRegisteredVMs(locateconfig.Server)
				if err != nil {
					return err
				}
				for i, vm := range vms {
					fmt.Printf("[%d] %s\n", i, vm.Name)
				}
				return nil
			}

			locateconfig.ByIndex = cmd.Flags().Changed("pick")
			if !locateconfig.ByIndex {
				if err := requireflag(locateconfig.VMName, "vm"); err != nil {
					return err
				}
			}
			if err := requireflag(locateconfig.DestinationRoot, "destination"); err != nil {
				return err
			}

			mode := share.ModePreAuthorized
			if credentialed {
				mode = share.ModeCredentialed
			}
			mount, err := share.Connect(locateconfig.DestinationRoot, mode, sharecreds)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := mount.Disconnect(); cerr != nil {
					log.Warnf("cleanup: %v", cerr)
				}
			}()

			result, err := client.Locate(locateconfig)
			if err != nil {
				return err
			}

			log.Infof("VM: %v", result.VM.Name)
			log.Infof("Backup from %v", result.Backup.CreationTime.Format("2006-01-02 15:04:05"))
			log.Infof("Source: %v", result.SourcePath)
			log.Infof("Destination: %v", result.DestinationPath)

			success("")
			return nil
		},
	}

	cmd.Flags().StringVar(&locateconfig.Server.Server, "server", "", "backup server address")
	cmd.Flags().StringVar(&locateconfig.Server.Username, "user", "", "backup server username")
	cmd.Flags().StringVar(&locateconfig.Server.Password, "password", "", "backup server password")
	cmd.Flags().StringVar(&locateconfig.VMName, "vm", "", "VM name, matched exactly")
	cmd.Flags().IntVar(&locateconfig.Index, "pick", 0, "select the VM by its index in --list output instead of by name")
	cmd.Flags().BoolVar(&listonly, "list", false, "list registered VMs with their indexes and exit")
	cmd.Flags().StringVar(&locateconfig.DestinationRoot, "destination", "", "destination folder (usually a share path)")
	cmd.Flags().BoolVar(&locateconfig.CreateArchive, "archive", false, "pack the backup into a single zip file")
	cmd.Flags().BoolVar(&credentialed, "mount", false, "mount the destination share with explicit credentials")
	cmd.Flags().StringVar(&sharecreds.Username, "share-user", "", "share username (with --mount)")
	cmd.Flags().StringVar(&sharecreds.Password, "share-password", "", "share password (with --mount)")

	return cmd
}
