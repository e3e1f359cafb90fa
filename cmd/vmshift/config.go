package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vmshift/vmshift/wfault"
	"gopkg.in/yaml.v2"
)

// FileConfig mirrors the flag surface of the subcommands. Flags given
// on the command line win over file values; the file fills in the rest.
type FileConfig struct {
	Export struct {
		VM             string `yaml:"vm"`
		Destination    string `yaml:"destination"`
		Prefix         string `yaml:"prefix"`
		PreferSnapshot *bool  `yaml:"prefer_snapshot"`
		UseVSS         *bool  `yaml:"use_vss"`
		Purge          *bool  `yaml:"purge"`
		JobTimeout     string `yaml:"job_timeout"`
	} `yaml:"export"`

	Locate struct {
		Server      string `yaml:"server"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		VM          string `yaml:"vm"`
		Destination string `yaml:"destination"`
		Archive     *bool  `yaml:"archive"`
	} `yaml:"locate"`

	Import struct {
		VMID   int    `yaml:"vmid"`
		Pool   string `yaml:"pool"`
		Slot   string `yaml:"slot"`
		Source string `yaml:"source"`
		Node   string `yaml:"node"`
		User   string `yaml:"user"`
		Pass   string `yaml:"password"`
	} `yaml:"import"`

	Share struct {
		Credentialed *bool  `yaml:"credentialed"`
		Username     string `yaml:"username"`
		Password     string `yaml:"password"`
	} `yaml:"share"`
}

func loadFileConfig(path string) (*FileConfig, error) {
	config := &FileConfig{}
	if path == "" {
		return config, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, wfault.New(wfault.KindPrecondition, "could not read config file '%s': %v", path, err)
	}

	err = yaml.UnmarshalStrict(raw, config)
	if err != nil {
		return nil, wfault.New(wfault.KindPrecondition, "could not parse config file '%s': %v", path, err)
	}

	return config, nil
}

// mergeString fills target from the file value when the flag was not
// given on the command line.
func mergeString(cmd *cobra.Command, flagname string, filevalue string, target *string) {
	if !cmd.Flags().Changed(flagname) && filevalue != "" {
		*target = filevalue
	}
}

func mergeInt(cmd *cobra.Command, flagname string, filevalue int, target *int) {
	if !cmd.Flags().Changed(flagname) && filevalue != 0 {
		*target = filevalue
	}
}

func mergeBool(cmd *cobra.Command, flagname string, filevalue *bool, target *bool) {
	if !cmd.Flags().Changed(flagname) && filevalue != nil {
		*target = *filevalue
	}
}

func mergeDuration(cmd *cobra.Command, flagname string, filevalue string, target *time.Duration) error {
	if cmd.Flags().Changed(flagname) || filevalue == "" {
		return nil
	}

	parsed, err := time.ParseDuration(filevalue)
	if err != nil {
		return wfault.New(wfault.KindPrecondition, "invalid job_timeout '%s': %v", filevalue, err)
	}
	*target = parsed
	return nil
}

func requireflag(value string, name string) error {
	if value == "" {
		return wfault.New(wfault.KindPrecondition, "required value --%s not set", name)
	}
	return nil
}
