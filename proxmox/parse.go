package proxmox

import (
	"fmt"
	"regexp"
	"strings"
)

// qm importdisk reports the new disk as an unused config entry, e.g.
//   Successfully imported disk as 'unused0:local-lvm:vm-100-disk-2'
var importeddiskpattern = regexp.MustCompile(`(unused\d+):([^'\s]+)`)

var unusedkeypattern = regexp.MustCompile(`unused\d+`)

// ParseImportedDisk extracts the unused-slot key and, when present,
// the volume identifier of the imported disk from qm importdisk
// output. The first unused token in the output wins, whether or not a
// keyed pair appears later. The volume id may be empty on qm versions
// that print only the slot key; resolve it from qm config output in
// that case.
func ParseImportedDisk(output string) (unusedkey string, volumeid string, err error) {
	loc := unusedkeypattern.FindStringIndex(output)
	if loc == nil {
		return "", "", fmt.Errorf("no unused disk entry in import output: %q", strings.TrimSpace(output))
	}
	unusedkey = output[loc[0]:loc[1]]

	rest := output[loc[0]:]
	if m := importeddiskpattern.FindStringSubmatchIndex(rest); m != nil && m[0] == 0 {
		return unusedkey, rest[m[4]:m[5]], nil
	}

	return unusedkey, "", nil
}

// ResolveUnusedVolume finds the volume identifier listed for the given
// unused-slot key in qm config output, which holds one "key: value"
// pair per line.
func ResolveUnusedVolume(configoutput string, unusedkey string) (string, error) {
	for _, line := range strings.Split(configoutput, "\n") {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		if strings.TrimSpace(key) == unusedkey {
			return strings.TrimSpace(value), nil
		}
	}

	return "", fmt.Errorf("config entry '%s' not found", unusedkey)
}
