package adaptation

import (
	"slices"
	"time"
)

// Direction classifies a change in the active bitrate set.
type Direction string

const (
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
	DirectionMixed     Direction = "mixed"
)

// SwitchingEvent records a change of the active bitrate set between two
// consecutive samples. Bitrate sets are sorted ascending.
type SwitchingEvent struct {
	Timestamp        time.Time `json:"timestamp"`
	PreviousBitrates []int64   `json:"previous_bitrates"`
	CurrentBitrates  []int64   `json:"current_bitrates"`
	Direction        Direction `json:"direction"`
}

// ClassifyDirection applies max-then-min precedence: a higher maximum is an
// upgrade, otherwise a lower minimum is a downgrade, otherwise mixed.
// Both sets must be non-empty.
func ClassifyDirection(previous, current []int64) Direction {
	if slices.Max(current) > slices.Max(previous) {
		return DirectionUpgrade
	}
	if slices.Min(current) < slices.Min(previous) {
		return DirectionDowngrade
	}
	return DirectionMixed
}

// DetectSwitch returns an event when the two sets differ as sets.
func DetectSwitch(previous, current []int64, ts time.Time) (SwitchingEvent, bool) {
	if len(previous) == 0 || len(current) == 0 || sameSet(previous, current) {
		return SwitchingEvent{}, false
	}
	return SwitchingEvent{
		Timestamp:        ts,
		PreviousBitrates: sortedCopy(previous),
		CurrentBitrates:  sortedCopy(current),
		Direction:        ClassifyDirection(previous, current),
	}, true
}

func sameSet(a, b []int64) bool {
	return slices.Equal(uniqueSorted(a), uniqueSorted(b))
}

func uniqueSorted(v []int64) []int64 {
	return slices.Compact(sortedCopy(v))
}

func sortedCopy(v []int64) []int64 {
	out := slices.Clone(v)
	slices.Sort(out)
	return out
}
