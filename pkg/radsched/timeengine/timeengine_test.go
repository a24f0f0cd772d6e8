package timeengine

import "testing"

func TestParseHHMM(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"08:60", 0, true},
		{"garbage", 0, true},
		{"8:30:00", 0, true},
	}
	for _, c := range cases {
		got, err := ParseHHMM(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseHHMM(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseHHMM(%q): unexpected error: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseHHMM(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestIntervalOverlaps(t *testing.T) {
	a := Interval{Start: 480, End: 720}
	b := Interval{Start: 700, End: 800}
	if !a.Overlaps(b) {
		t.Error("expected overlapping intervals to overlap")
	}

	c := Interval{Start: 720, End: 800}
	if a.Overlaps(c) {
		t.Error("touching intervals must not overlap")
	}
}

func TestIntervalDuration(t *testing.T) {
	iv := Interval{Start: 480, End: 960}
	if got := iv.Duration(); got != 480 {
		t.Errorf("Duration() = %d, want 480", got)
	}
}

func TestBuildIntervalSameDay(t *testing.T) {
	iv, err := BuildInterval("08:00", "16:00", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.Start != 480 || iv.End != 960 {
		t.Errorf("got %+v, want {480 960}", iv)
	}
}

func TestBuildIntervalCrossesMidnightImplicitly(t *testing.T) {
	// 22:00 -> 06:00 with no explicit day offset crosses midnight once.
	iv, err := BuildInterval("22:00", "06:00", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.Start != 1320 || iv.End != 1320+480 {
		t.Errorf("got %+v, want {1320 1800}", iv)
	}
	if iv.Duration() != 480 {
		t.Errorf("Duration() = %d, want 480", iv.Duration())
	}
}

func TestBuildIntervalExplicitMultiDayOffset(t *testing.T) {
	iv, err := BuildInterval("08:00", "08:00", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if iv.Duration() != 2*MinutesPerDay {
		t.Errorf("Duration() = %d, want %d", iv.Duration(), 2*MinutesPerDay)
	}
}

func TestBuildIntervalPropagatesParseError(t *testing.T) {
	if _, err := BuildInterval("bad", "16:00", 0); err == nil {
		t.Error("expected error for malformed start time")
	}
	if _, err := BuildInterval("08:00", "bad", 0); err == nil {
		t.Error("expected error for malformed end time")
	}
}

func TestIntervalOffset(t *testing.T) {
	iv := Interval{Start: 480, End: 960}
	shifted := iv.Offset(1)
	if shifted.Start != 480+MinutesPerDay || shifted.End != 960+MinutesPerDay {
		t.Errorf("got %+v", shifted)
	}
}
