package service

import (
	"testing"
	"time"

	"github.com/dafibh/eventcore/internal/domain"
)

func TestComputeTargetDate_Daily(t *testing.T) {
	origin := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	got := ComputeTargetDate(origin, domain.RecurrenceDaily, 0, 5)
	want := time.Date(2026, time.March, 6, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeTargetDate_Weekly(t *testing.T) {
	origin := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	got := ComputeTargetDate(origin, domain.RecurrenceWeekly, 0, 3)
	want := time.Date(2026, time.March, 22, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeTargetDate_MonthlyClampsAtMonthEnd(t *testing.T) {
	// Jan 31 -> Feb 28 (2026 is not a leap year) -> Mar 31 (reverts once the
	// target month has a 31st again, since clamping is relative to origin's
	// day, not carried forward from the clamped value).
	origin := time.Date(2026, time.January, 31, 12, 0, 0, 0, time.UTC)

	feb := ComputeTargetDate(origin, domain.RecurrenceMonthly, 0, 1)
	if want := time.Date(2026, time.February, 28, 12, 0, 0, 0, time.UTC); !feb.Equal(want) {
		t.Errorf("Feb: got %v, want %v", feb, want)
	}

	mar := ComputeTargetDate(origin, domain.RecurrenceMonthly, 0, 2)
	if want := time.Date(2026, time.March, 31, 12, 0, 0, 0, time.UTC); !mar.Equal(want) {
		t.Errorf("Mar: got %v, want %v", mar, want)
	}
}

func TestComputeTargetDate_MonthlyClampsAtLeapFebruary(t *testing.T) {
	origin := time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC)
	// 2024 is a leap year: Jan 31 + 13 months lands on Feb 2024.
	got := ComputeTargetDate(origin, domain.RecurrenceMonthly, 0, 13)
	want := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestComputeTargetDate_YearlyClampsLeapDay(t *testing.T) {
	origin := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		seriesIndex int
		want        time.Time
	}{
		{1, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{2, time.Date(2026, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{3, time.Date(2027, time.February, 28, 0, 0, 0, 0, time.UTC)},
		{4, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, c := range cases {
		got := ComputeTargetDate(origin, domain.RecurrenceYearly, 0, c.seriesIndex)
		if !got.Equal(c.want) {
			t.Errorf("seriesIndex %d: got %v, want %v", c.seriesIndex, got, c.want)
		}
	}
}

func TestComputeTargetDate_Never(t *testing.T) {
	origin := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	got := ComputeTargetDate(origin, domain.RecurrenceNone, 0, 0)
	if !got.Equal(origin) {
		t.Errorf("got %v, want origin %v", got, origin)
	}
}

func TestComputeTargetDate_AnchorOffsetsSeriesIndex(t *testing.T) {
	origin := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	// anchorIndex 5 means origin corresponds to series index 5; index 7 is
	// two daily steps ahead of the anchor, not seven.
	got := ComputeTargetDate(origin, domain.RecurrenceDaily, 5, 7)
	want := time.Date(2026, time.March, 3, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
