package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vmshift/vmshift/proxmox"
	"github.com/vmshift/vmshift/wfault"
)

func importCmd() *cobra.Command {
	var (
		importconfig proxmox.ImportConfig
		node         string
		sshuser      string
		sshpassword  string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a disk image into Proxmox VE storage and attach it",
		RunE: func(cmd *cobra.Command, args []string) error {
			fileconfig, err := loadFileConfig(configpath)
			if err != nil {
				return err
			}

			mergeInt(cmd, "vmid", fileconfig.Import.VMID, &importconfig.VMID)
			mergeString(cmd, "pool", fileconfig.Import.Pool, &importconfig.Pool)
			mergeString(cmd, "slot", fileconfig.Import.Slot, &importconfig.Slot)
			mergeString(cmd, "source", fileconfig.Import.Source, &importconfig.SourcePath)
			mergeString(cmd, "node", fileconfig.Import.Node, &node)
			mergeString(cmd, "ssh-user", fileconfig.Import.User, &sshuser)
			mergeString(cmd, "ssh-password", fileconfig.Import.Pass, &sshpassword)

			if importconfig.VMID == 0 {
				return wfault.New(wfault.KindPrecondition, "required value --vmid not set")
			}
			if err := requireflag(importconfig.Pool, "pool"); err != nil {
				return err
			}
			if err := requireflag(importconfig.SourcePath, "source"); err != nil {
				return err
			}

			var runner proxmox.Runner = &proxmox.LocalRunner{}
			if node != "" {
				runner = &proxmox.SSHRunner{
					Address:  node,
					Username: sshuser,
					Password: sshpassword,
				}
			}

			result, err := proxmox.NewImporter(runner).Import(importconfig)
			if err != nil {
				return err
			}

			log.Infof("Imported volume: %v", result.VolumeID)
			log.Infof("Attached at %v, first in boot order", result.Slot)
			success("")
			return nil
		},
	}

	cmd.Flags().IntVar(&importconfig.VMID, "vmid", 0, "target VM id")
	cmd.Flags().StringVar(&importconfig.Pool, "pool", "", "storage pool to import into")
	cmd.Flags().StringVar(&importconfig.Slot, "slot", "scsi0", "attachment slot")
	cmd.Flags().StringVar(&importconfig.SourcePath, "source", "", "disk image path readable by the node")
	cmd.Flags().StringVar(&node, "node", "", "SSH address (host:port) of the Proxmox node; empty runs qm locally")
	cmd.Flags().StringVar(&sshuser, "ssh-user", "root", "SSH username (with --node)")
	cmd.Flags().StringVar(&sshpassword, "ssh-password", "", "SSH password (with --node)")

	return cmd
}
