package schedule

import (
	"testing"
	"time"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseKind(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"daily", "DAILY", " Weekly ", "biweekly", "monthly", "custom"} {
		if _, err := ParseKind(raw); err != nil {
			t.Fatalf("ParseKind(%q): %v", raw, err)
		}
	}
	if _, err := ParseKind("fortnightly"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestNextRunDaily(t *testing.T) {
	t.Parallel()
	anchor := ts("2024-01-01T09:00:00Z")
	now := ts("2024-01-01T10:00:00Z")

	got := NextRun(anchor, KindDaily, now)
	want := ts("2024-01-02T09:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("unexpected next run: got=%v want=%v", got, want)
	}
}

func TestNextRunFutureAnchorReturnsAnchor(t *testing.T) {
	t.Parallel()
	anchor := ts("2024-06-01T09:00:00Z")
	now := ts("2024-01-01T10:00:00Z")

	for _, kind := range []Kind{KindDaily, KindWeekly, KindBiweekly, KindMonthly, KindCustom} {
		got := NextRun(anchor, kind, now)
		if !got.Equal(anchor) {
			t.Fatalf("kind=%s: future anchor must be returned as-is: got=%v", kind, got)
		}
	}
}

func TestNextRunWeeklyPreservesWeekday(t *testing.T) {
	t.Parallel()
	anchor := ts("2024-01-01T09:00:00Z") // Monday
	now := ts("2024-02-14T12:00:00Z")    // Wednesday

	got := NextRun(anchor, KindWeekly, now)
	if got.Weekday() != time.Monday {
		t.Fatalf("weekday not preserved: got=%v", got.Weekday())
	}
	if got.Hour() != 9 || got.Minute() != 0 {
		t.Fatalf("time of day not preserved: got=%v", got)
	}
	if !got.After(now) {
		t.Fatalf("next run not after now: got=%v now=%v", got, now)
	}
}

func TestNextRunBiweeklyAnchorsToOriginalStart(t *testing.T) {
	t.Parallel()
	anchor := ts("2024-01-01T09:00:00Z")
	now := ts("2024-01-16T00:00:00Z") // one day past anchor+14d

	got := NextRun(anchor, KindBiweekly, now)
	want := ts("2024-01-29T09:00:00Z") // anchor + 28d, not now + 14d
	if !got.Equal(want) {
		t.Fatalf("unexpected biweekly next run: got=%v want=%v", got, want)
	}
}

func TestNextRunMonthlyClampsToMonthEnd(t *testing.T) {
	t.Parallel()
	anchor := ts("2024-01-31T09:00:00Z")
	now := ts("2024-02-01T00:00:00Z")

	got := NextRun(anchor, KindMonthly, now)
	want := ts("2024-02-29T09:00:00Z") // 2024 is a leap year
	if !got.Equal(want) {
		t.Fatalf("unexpected monthly next run: got=%v want=%v", got, want)
	}

	now = ts("2025-02-01T00:00:00Z")
	got = NextRun(anchor, KindMonthly, now)
	want = ts("2025-02-28T09:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("unexpected monthly next run: got=%v want=%v", got, want)
	}
}

func TestNextRunCustomPastAnchor(t *testing.T) {
	t.Parallel()
	anchor := ts("2024-01-01T09:00:00Z")
	now := ts("2024-03-01T00:00:00Z")

	got := NextRun(anchor, KindCustom, now)
	want := now.Add(time.Second)
	if !got.Equal(want) {
		t.Fatalf("unexpected custom next run: got=%v want=%v", got, want)
	}
}

func TestNextRunAlwaysStrictlyAfterNow(t *testing.T) {
	t.Parallel()
	anchors := []time.Time{
		ts("2020-02-29T23:59:59Z"),
		ts("2024-01-01T09:00:00Z"),
		ts("2024-12-31T00:00:00Z"),
	}
	nows := []time.Time{
		ts("2024-01-01T09:00:00Z"), // exactly at anchor
		ts("2024-06-15T12:30:00Z"),
		ts("2030-01-01T00:00:00Z"),
	}
	kinds := []Kind{KindDaily, KindWeekly, KindBiweekly, KindMonthly, KindCustom}

	for _, anchor := range anchors {
		for _, now := range nows {
			for _, kind := range kinds {
				got := NextRun(anchor, kind, now)
				if !got.After(now) {
					t.Fatalf("kind=%s anchor=%v now=%v: next run %v not strictly after now", kind, anchor, now, got)
				}
			}
		}
	}
}

func TestNextRunNormalizesToUTC(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+5", 5*3600)
	anchor := time.Date(2024, 1, 1, 14, 0, 0, 0, loc) // 09:00 UTC
	now := ts("2024-01-01T10:00:00Z")

	got := NextRun(anchor, KindDaily, now)
	want := ts("2024-01-02T09:00:00Z")
	if !got.Equal(want) {
		t.Fatalf("unexpected next run: got=%v want=%v", got, want)
	}
	if got.Location() != time.UTC {
		t.Fatalf("result not in UTC: %v", got.Location())
	}
}

func TestKindRecurring(t *testing.T) {
	t.Parallel()
	if KindCustom.Recurring() {
		t.Fatal("custom must not be recurring")
	}
	for _, kind := range []Kind{KindDaily, KindWeekly, KindBiweekly, KindMonthly} {
		if !kind.Recurring() {
			t.Fatalf("kind=%s must be recurring", kind)
		}
	}
}
