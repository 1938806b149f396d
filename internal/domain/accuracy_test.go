package domain

import "testing"

// ─── Accuracy ───────────────────────────────────────────────────────────────

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name      string
		estimated *int
		actual    int
		want      *int
	}{
		{"exact", IntPtr(30), 30, IntPtr(100)},
		{"late", IntPtr(30), 45, IntPtr(67)},
		{"early", IntPtr(45), 30, IntPtr(67)},
		{"scenario", IntPtr(30), 20, IntPtr(67)},
		{"double", IntPtr(30), 60, IntPtr(50)},
		{"way over", IntPtr(10), 1000, IntPtr(1)},
		{"no estimate", nil, 25, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Accuracy(tt.estimated, tt.actual)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("Accuracy() = %d, want nil", *got)
			case tt.want != nil && got == nil:
				t.Errorf("Accuracy() = nil, want %d", *tt.want)
			case tt.want != nil && *got != *tt.want:
				t.Errorf("Accuracy() = %d, want %d", *got, *tt.want)
			}
		})
	}
}

func TestAccuracy_Symmetric(t *testing.T) {
	for _, pair := range [][2]int{{30, 45}, {5, 120}, {60, 61}, {1, 2}} {
		a := Accuracy(IntPtr(pair[0]), pair[1])
		b := Accuracy(IntPtr(pair[1]), pair[0])
		if *a != *b {
			t.Errorf("Accuracy(%d,%d)=%d but Accuracy(%d,%d)=%d", pair[0], pair[1], *a, pair[1], pair[0], *b)
		}
	}
}

func TestAccuracy_Bounds(t *testing.T) {
	for est := 1; est <= 200; est += 7 {
		for act := 1; act <= 200; act += 11 {
			got := *Accuracy(IntPtr(est), act)
			if got < 0 || got > 100 {
				t.Fatalf("Accuracy(%d,%d) = %d, out of range", est, act, got)
			}
		}
		if got := *Accuracy(IntPtr(est), est); got != 100 {
			t.Errorf("Accuracy(%d,%d) = %d, want 100", est, est, got)
		}
	}
}

// ─── Formatting ─────────────────────────────────────────────────────────────

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{-5, "0m"},
		{1, "1m"},
		{45, "45m"},
		{60, "1h"},
		{120, "2h"},
		{90, "1h 30m"},
		{125, "2h 5m"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.minutes); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

func TestAccuracyEmoji(t *testing.T) {
	if AccuracyEmoji(95) != "🎯" || AccuracyEmoji(90) != "🎯" {
		t.Error("expected target emoji at 90+")
	}
	if AccuracyEmoji(70) != "👍" {
		t.Error("expected thumbs up at 70")
	}
	if AccuracyEmoji(69) != "📊" {
		t.Error("expected chart below 70")
	}
}
