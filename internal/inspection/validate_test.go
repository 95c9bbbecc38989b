package inspection

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizePlate(t *testing.T) {
	plate, err := NormalizePlate("  abc-1234 ")
	if err != nil {
		t.Fatalf("NormalizePlate: %v", err)
	}
	if plate != "ABC-1234" {
		t.Fatalf("expected ABC-1234, got %q", plate)
	}

	// 幂等
	again, err := NormalizePlate(plate)
	if err != nil {
		t.Fatalf("NormalizePlate twice: %v", err)
	}
	if again != plate {
		t.Fatalf("expected idempotent normalization, got %q", again)
	}
}

func TestNormalizePlateEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\t\n"} {
		_, err := NormalizePlate(raw)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("raw=%q: expected ValidationError, got %v", raw, err)
		}
		if ve.Field != "vehicle_plate" {
			t.Fatalf("raw=%q: expected vehicle_plate field, got %q", raw, ve.Field)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"scheduled", "passed", "failed"} {
		s, err := ParseStatus(raw)
		if err != nil {
			t.Fatalf("ParseStatus(%q): %v", raw, err)
		}
		if string(s) != raw {
			t.Fatalf("expected %q, got %q", raw, s)
		}
	}

	_, err := ParseStatus("cancelled")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "status" {
		t.Fatalf("expected status validation error, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	if !d.Equal(want) {
		t.Fatalf("expected %v, got %v", want, d)
	}

	for _, raw := range []string{"15-03-2025", "2025/03/15", "2025-13-01", "not-a-date", ""} {
		_, err := ParseDate(raw)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("raw=%q: expected ValidationError, got %v", raw, err)
		}
		if ve.Field != "inspection_date" {
			t.Fatalf("raw=%q: expected inspection_date field, got %q", raw, ve.Field)
		}
	}
}

func TestValidateDate(t *testing.T) {
	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	yesterday := today.AddDate(0, 0, -1)
	tomorrow := today.AddDate(0, 0, 1)

	if err := ValidateDate(tomorrow, StatusScheduled, today); err != nil {
		t.Fatalf("future scheduled: %v", err)
	}
	if err := ValidateDate(today, StatusScheduled, today); err != nil {
		t.Fatalf("today counts as not-in-past for scheduled: %v", err)
	}
	if err := ValidateDate(yesterday, StatusScheduled, today); err == nil {
		t.Fatalf("expected past scheduled date rejected")
	}

	// passed / failed 任意日期
	for _, s := range []Status{StatusPassed, StatusFailed} {
		if err := ValidateDate(yesterday, s, today); err != nil {
			t.Fatalf("past date for %s: %v", s, err)
		}
	}
}

func TestDateOf(t *testing.T) {
	in := time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC)
	want := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if got := DateOf(in); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// 非 UTC 输入先转 UTC 再截断
	loc := time.FixedZone("UTC+8", 8*3600)
	in = time.Date(2025, 3, 11, 6, 0, 0, 0, loc) // UTC: 2025-03-10 22:00
	if got := DateOf(in); !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
