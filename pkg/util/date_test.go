package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeZonelessMicros(t *testing.T) {
	got, ok := ParseTime("2024-10-10T10:10:10.123456")
	if !ok {
		t.Fatalf("expected ok")
	}
	want := time.Date(2024, 10, 10, 10, 10, 10, 123456000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseTimeOffset(t *testing.T) {
	got, ok := ParseTime("2024-10-10T12:10:10.5+02:00")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Hour() != 10 {
		t.Fatalf("unexpected hour %v", got.UTC())
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("yesterday", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestFormatISORoundTrip(t *testing.T) {
	in := time.Date(2025, 1, 2, 3, 4, 5, 678000, time.UTC)
	got, ok := ParseTime(FormatISO(in))
	if !ok || !got.Equal(in) {
		t.Fatalf("round trip failed: %v %v", got, ok)
	}
}

func TestStringsHelpers(t *testing.T) {
	if v, ok := ParseFloat(" 0.25 "); !ok || v != 0.25 {
		t.Fatalf("ParseFloat: %v %v", v, ok)
	}
	if _, ok := ParseFloat("abc"); ok {
		t.Fatalf("expected invalid")
	}
	if got := SplitList("AAPL, ,TSLA,"); len(got) != 2 || got[1] != "TSLA" {
		t.Fatalf("SplitList: %v", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("Truncate: %q", got)
	}
}
