package adaptation

import (
	"testing"
	"time"
)

func TestClassifyDirection(t *testing.T) {
	tests := []struct {
		name     string
		previous []int64
		current  []int64
		want     Direction
	}{
		{"added higher", []int64{500, 1000}, []int64{500, 1000, 2000}, DirectionUpgrade},
		{"removed highest", []int64{500, 1000, 2000}, []int64{500, 1000}, DirectionDowngrade},
		{"single step up", []int64{500}, []int64{1000}, DirectionUpgrade},
		{"single step down", []int64{1000}, []int64{500}, DirectionDowngrade},
		{"max wins over min", []int64{500, 1000}, []int64{250, 2000}, DirectionUpgrade},
		{"inner change", []int64{500, 1000, 2000}, []int64{500, 2000}, DirectionMixed},
		{"dropped lowest", []int64{500, 1000}, []int64{1000}, DirectionMixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyDirection(tt.previous, tt.current); got != tt.want {
				t.Errorf("ClassifyDirection(%v, %v) = %q, want %q", tt.previous, tt.current, got, tt.want)
			}
		})
	}
}

func TestDetectSwitch(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		previous []int64
		current  []int64
		want     bool
	}{
		{"identical", []int64{500, 1000}, []int64{500, 1000}, false},
		{"order only", []int64{1000, 500}, []int64{500, 1000}, false},
		{"duplicates", []int64{500, 500}, []int64{500}, false},
		{"different", []int64{500}, []int64{1000}, true},
		{"empty previous", nil, []int64{1000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := DetectSwitch(tt.previous, tt.current, ts)
			if ok != tt.want {
				t.Fatalf("DetectSwitch = %v, want %v", ok, tt.want)
			}
			if ok && !ev.Timestamp.Equal(ts) {
				t.Errorf("Timestamp = %v", ev.Timestamp)
			}
		})
	}

	ev, _ := DetectSwitch([]int64{2000, 500}, []int64{1000}, ts)
	if ev.PreviousBitrates[0] != 500 || ev.PreviousBitrates[1] != 2000 {
		t.Errorf("PreviousBitrates not sorted: %v", ev.PreviousBitrates)
	}
}
