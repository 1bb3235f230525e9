package vesting_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"equity-token/models"
	"equity-token/vesting"
)

const (
	year    = int64(365 * 24 * 60 * 60)
	cliff   = year
	vestDur = 4 * year
	start   = int64(1_700_000_000)
)

func scheduleParticipant(allocation *big.Int) *models.Participant {
	return &models.Participant{
		Wallet:           common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		TotalAllocation:  allocation,
		ClaimedAmount:    new(big.Int),
		VestingStartTime: start,
		CliffDuration:    cliff,
		VestingDuration:  vestDur,
		IsActive:         true,
	}
}

func requireAmount(t *testing.T, want, got *big.Int) {
	t.Helper()
	require.Zero(t, want.Cmp(got), "want %s, got %s", want, got)
}

func TestAllocationFor(t *testing.T) {
	requireAmount(t, vesting.Tokens(4_000_000), vesting.AllocationFor(40))
	requireAmount(t, vesting.TotalSupply(), vesting.AllocationFor(100))
	requireAmount(t, vesting.Tokens(100_000), vesting.AllocationFor(1))
}

func TestUnlocked_Curve(t *testing.T) {
	alloc := vesting.Tokens(4_000_000)
	p := scheduleParticipant(alloc)

	half := cliff + (vestDur-cliff)/2
	tolerance := vesting.Tokens(1)

	tests := []struct {
		name    string
		elapsed int64
		want    *big.Int
		exact   bool
	}{
		{"at start", 0, big.NewInt(0), true},
		{"before cliff", cliff - 1, big.NewInt(0), true},
		{"exactly at cliff", cliff, vesting.Tokens(1_000_000), true},
		{"one second after cliff", cliff + 1, vesting.Tokens(1_000_000), false},
		{"halfway through linear part", half, vesting.Tokens(2_500_000), true},
		{"two years", 2 * year, vesting.Tokens(2_000_000), true},
		{"end of vesting", vestDur, alloc, true},
		{"long after vesting", vestDur * 3, alloc, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := vesting.Unlocked(p, start+tc.elapsed)
			if tc.exact {
				requireAmount(t, tc.want, got)
				return
			}
			diff := new(big.Int).Sub(got, tc.want)
			require.True(t, diff.Sign() >= 0 && diff.Cmp(tolerance) <= 0, "want ~%s got %s", tc.want, got)
		})
	}
}

func TestUnlocked_NotStarted(t *testing.T) {
	p := scheduleParticipant(vesting.Tokens(1000))
	p.VestingStartTime = 0
	require.Zero(t, vesting.Unlocked(p, start+vestDur).Sign())
}

func TestUnlocked_ClockBeforeStart(t *testing.T) {
	p := scheduleParticipant(vesting.Tokens(1000))
	require.Zero(t, vesting.Unlocked(p, start-10).Sign())
}

func TestUnlocked_Monotonic(t *testing.T) {
	p := scheduleParticipant(vesting.Tokens(3_333_333))
	prev := new(big.Int)
	for elapsed := int64(0); elapsed <= vestDur+year; elapsed += 86_400 * 7 {
		got := vesting.Unlocked(p, start+elapsed)
		require.True(t, got.Cmp(prev) >= 0, "decreased at %d", elapsed)
		require.True(t, got.Cmp(p.TotalAllocation) <= 0)
		prev = got
	}
}

func TestVested_SubtractsClaimed(t *testing.T) {
	p := scheduleParticipant(vesting.Tokens(4_000_000))
	p.ClaimedAmount = vesting.Tokens(1_000_000)

	require.Zero(t, vesting.Vested(p, start+cliff).Sign())
	requireAmount(t, vesting.Tokens(3_000_000), vesting.Vested(p, start+vestDur))
}

func TestVested_InactiveOrLeaver(t *testing.T) {
	p := scheduleParticipant(vesting.Tokens(4_000_000))

	p.IsActive = false
	require.Zero(t, vesting.Vested(p, start+vestDur).Sign())

	p.IsActive = true
	p.IsLeaver = true
	require.Zero(t, vesting.Vested(p, start+vestDur).Sign())

	require.Zero(t, vesting.Vested(nil, start+vestDur).Sign())
}
