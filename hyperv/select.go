package hyperv

// Strategy identifies the export source and mechanism chosen for a run.
type Strategy string

const (
	// StrategySnapshot exports from the most recent checkpoint.
	StrategySnapshot Strategy = "snapshot"
	// StrategyLiveVSS exports a running VM through a shadow copy.
	StrategyLiveVSS Strategy = "live-vss"
	// StrategyStandard is a plain export of the VM as-is.
	StrategyStandard Strategy = "standard"
)

// LatestSnapshot returns the snapshot with the greatest creation time.
// Ties on creation time are broken by name, descending, so the result
// is deterministic for any input ordering. Returns nil for an empty
// slice.
func LatestSnapshot(snapshots []Snapshot) *Snapshot {
	var latest *Snapshot

	for i := range snapshots {
		s := &snapshots[i]
		if latest == nil {
			latest = s
			continue
		}
		if s.CreationTime.After(latest.CreationTime) {
			latest = s
			continue
		}
		if s.CreationTime.Equal(latest.CreationTime) && s.Name > latest.Name {
			latest = s
		}
	}

	return latest
}

// ChooseStrategy applies the selection policy. It is a strict priority
// order with exactly three mutually exclusive outcomes:
//
//  1. snapshots exist and prefersnapshot is set: export from the most
//     recent snapshot;
//  2. the VM is running and usevss is set: shadow-copy live export;
//  3. otherwise: standard export.
//
// The returned snapshot is non-nil only for StrategySnapshot. The
// chosen strategy is final; a failed export is not retried with
// another strategy.
func ChooseStrategy(vm *VM, snapshots []Snapshot, prefersnapshot bool, usevss bool) (Strategy, *Snapshot) {
	if prefersnapshot {
		if latest := LatestSnapshot(snapshots); latest != nil {
			return StrategySnapshot, latest
		}
	}

	if vm.Running() && usevss {
		return StrategyLiveVSS, nil
	}

	return StrategyStandard, nil
}
