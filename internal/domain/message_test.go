package domain

import (
	"testing"
	"time"
)

func TestParseSlackTS(t *testing.T) {
	got, err := ParseSlackTS("1712345678.000200")
	if err != nil {
		t.Fatalf("ParseSlackTS failed: %v", err)
	}
	want := time.Unix(1712345678, 200*int64(time.Microsecond)).UTC()
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseSlackTSNoFraction(t *testing.T) {
	got, err := ParseSlackTS("1712345678")
	if err != nil {
		t.Fatalf("ParseSlackTS failed: %v", err)
	}
	if got.Unix() != 1712345678 {
		t.Errorf("got %v", got)
	}
}

func TestParseSlackTSInvalid(t *testing.T) {
	for _, ts := range []string{"", "abc", "12.ab"} {
		if _, err := ParseSlackTS(ts); err == nil {
			t.Errorf("ParseSlackTS(%q) should fail", ts)
		}
	}
}

func TestFormatSlackTSRoundTrip(t *testing.T) {
	const ts = "1712345678.000200"
	parsed, err := ParseSlackTS(ts)
	if err != nil {
		t.Fatalf("ParseSlackTS failed: %v", err)
	}
	if got := FormatSlackTS(parsed); got != ts {
		t.Errorf("got %s, want %s", got, ts)
	}
}
