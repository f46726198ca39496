package util

import "testing"

func TestUnixSeconds(t *testing.T) {
	const s = int64(1700000000)
	for _, in := range []int64{s, s * 1e3, s * 1e6, s * 1e9} {
		if got := UnixSeconds(in); got != s {
			t.Fatalf("UnixSeconds(%d) = %d, want %d", in, got, s)
		}
	}
	if got := UnixSeconds(0); got != 0 {
		t.Fatalf("expected zero to pass through, got %d", got)
	}
}
