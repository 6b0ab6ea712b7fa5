package fines

import (
	"testing"
	"time"

	"pgregory.net/rapid"
)

func TestCalculate(t *testing.T) {
	due := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		returned time.Time
		want     int64
	}{
		{"one hour late", time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), 10},
		{"one day early", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), 0},
		{"exactly on time", due, 0},
		{"exactly three days late", due.Add(72 * time.Hour), 30},
		{"three days and a minute late", due.Add(72*time.Hour + time.Minute), 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(due, tt.returned, 10)
			if got != tt.want {
				t.Errorf("Calculate() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCalculate_NonPositiveRate(t *testing.T) {
	due := time.Now()
	if got := Calculate(due, due.Add(48*time.Hour), 0); got != 0 {
		t.Errorf("Calculate with zero rate = %d, want 0", got)
	}
}

func TestDueDate_Default(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	got := DueDate(now, 0)
	want := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DueDate() = %v, want %v", got, want)
	}
}

func TestCalculate_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		due := time.Unix(rapid.Int64Range(0, 4_000_000_000).Draw(t, "due"), 0)
		offset := time.Duration(rapid.Int64Range(-1_000_000, 10_000_000).Draw(t, "offset")) * time.Second
		rate := rapid.Int64Range(1, 1000).Draw(t, "rate")
		returned := due.Add(offset)

		fine := Calculate(due, returned, rate)

		if fine < 0 {
			t.Fatalf("negative fine %d", fine)
		}
		if offset <= 0 && fine != 0 {
			t.Fatalf("on-time return fined %d", fine)
		}
		if offset > 0 {
			if fine%rate != 0 {
				t.Fatalf("fine %d is not a multiple of rate %d", fine, rate)
			}
			days := fine / rate
			if time.Duration(days-1)*day >= offset || time.Duration(days)*day < offset {
				t.Fatalf("days %d do not bracket lateness %v", days, offset)
			}
		}
	})
}

func TestCalculate_MonotonicInReturnTime(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		due := time.Unix(1_700_000_000, 0)
		a := rapid.Int64Range(-100_000, 5_000_000).Draw(t, "a")
		b := rapid.Int64Range(a, 5_000_001).Draw(t, "b")

		fa := Calculate(due, due.Add(time.Duration(a)*time.Second), DefaultPerDay)
		fb := Calculate(due, due.Add(time.Duration(b)*time.Second), DefaultPerDay)
		if fa > fb {
			t.Fatalf("later return cheaper: %d > %d", fa, fb)
		}
	})
}
