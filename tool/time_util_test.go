package tool

import (
	"testing"
	"time"
)

func TestMakeDate(t *testing.T) {
	if got := MakeDate(1700000000000); got != "2023-11-14 22:13:20(UTC)" {
		t.Fatalf("MakeDate = %s", got)
	}
}

func TestMillisOr(t *testing.T) {
	fallback := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := MillisOr(0, fallback); !got.Equal(fallback) {
		t.Fatalf("zero timestamp = %v, want fallback", got)
	}
	if got := MillisOr(-5, fallback); !got.Equal(fallback) {
		t.Fatalf("negative timestamp = %v, want fallback", got)
	}
	if got := MillisOr(1700000000123, fallback); got.UnixMilli() != 1700000000123 {
		t.Fatalf("timestamp = %d", got.UnixMilli())
	}
}

func TestSinceMillis(t *testing.T) {
	start := MakeTimestamp() - 50
	if d := SinceMillis(start); d < 50 {
		t.Fatalf("SinceMillis = %d", d)
	}
}
