package hyperv_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmshift/vmshift/hyperv"
)

func snap(name string, ts string) hyperv.Snapshot {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return hyperv.Snapshot{Name: name, CreationTime: t}
}

func TestChooseStrategyMatrix(t *testing.T) {
	manysnaps := []hyperv.Snapshot{
		snap("nightly", "2024-01-01T00:00:00Z"),
		snap("pre-upgrade", "2024-01-03T00:00:00Z"),
		snap("weekly", "2024-01-02T00:00:00Z"),
	}

	tests := []struct {
		name           string
		state          string
		snapshots      []hyperv.Snapshot
		prefersnapshot bool
		usevss         bool
		want           hyperv.Strategy
		wantsnapshot   string
	}{
		{"stopped no snapshots", hyperv.VMStateOff, nil, true, true, hyperv.StrategyStandard, ""},
		{"saved no snapshots", hyperv.VMStateSaved, nil, true, true, hyperv.StrategyStandard, ""},
		{"running no snapshots vss", hyperv.VMStateRunning, nil, true, true, hyperv.StrategyLiveVSS, ""},
		{"running no snapshots no vss", hyperv.VMStateRunning, nil, true, false, hyperv.StrategyStandard, ""},
		{"running snapshots preferred", hyperv.VMStateRunning, manysnaps, true, true, hyperv.StrategySnapshot, "pre-upgrade"},
		{"running snapshots not preferred", hyperv.VMStateRunning, manysnaps, false, true, hyperv.StrategyLiveVSS, ""},
		{"stopped snapshots preferred", hyperv.VMStateOff, manysnaps, true, false, hyperv.StrategySnapshot, "pre-upgrade"},
		{"stopped snapshots not preferred", hyperv.VMStateOff, manysnaps, false, false, hyperv.StrategyStandard, ""},
		{"one snapshot preferred", hyperv.VMStateOff, manysnaps[:1], true, false, hyperv.StrategySnapshot, "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := &hyperv.VM{Name: "vm", State: tt.state}
			got, snapshot := hyperv.ChooseStrategy(vm, tt.snapshots, tt.prefersnapshot, tt.usevss)
			assert.Equal(t, tt.want, got)
			if tt.want == hyperv.StrategySnapshot {
				require.NotNil(t, snapshot)
				assert.Equal(t, tt.wantsnapshot, snapshot.Name)
			} else {
				assert.Nil(t, snapshot)
			}
		})
	}
}

func TestLatestSnapshotIgnoresInputOrder(t *testing.T) {
	orderings := [][]hyperv.Snapshot{
		{snap("t1", "2024-01-01T00:00:00Z"), snap("t2", "2024-01-02T00:00:00Z"), snap("t3", "2024-01-03T00:00:00Z")},
		{snap("t3", "2024-01-03T00:00:00Z"), snap("t1", "2024-01-01T00:00:00Z"), snap("t2", "2024-01-02T00:00:00Z")},
		{snap("t2", "2024-01-02T00:00:00Z"), snap("t3", "2024-01-03T00:00:00Z"), snap("t1", "2024-01-01T00:00:00Z")},
	}

	for _, snapshots := range orderings {
		latest := hyperv.LatestSnapshot(snapshots)
		require.NotNil(t, latest)
		assert.Equal(t, "t3", latest.Name)
	}
}

func TestLatestSnapshotTieBreaksByNameDescending(t *testing.T) {
	a := snap("alpha", "2024-01-01T00:00:00Z")
	b := snap("beta", "2024-01-01T00:00:00Z")

	latest := hyperv.LatestSnapshot([]hyperv.Snapshot{a, b})
	require.NotNil(t, latest)
	assert.Equal(t, "beta", latest.Name)

	latest = hyperv.LatestSnapshot([]hyperv.Snapshot{b, a})
	require.NotNil(t, latest)
	assert.Equal(t, "beta", latest.Name)
}

func TestLatestSnapshotEmpty(t *testing.T) {
	assert.Nil(t, hyperv.LatestSnapshot(nil))
}
