package auth

import (
	"testing"
	"time"
)

func TestCappedBackoff_Doubles(t *testing.T) {
	interval := 2 * time.Second

	tests := []struct {
		name    string
		pending int
		want    time.Duration
	}{
		{"first poll", 0, 2 * time.Second},
		{"negative count", -1, 2 * time.Second},
		{"one pending", 1, 4 * time.Second},
		{"two pending", 2, 8 * time.Second},
		{"three pending", 3, 16 * time.Second},
		{"four pending capped", 4, 30 * time.Second},
		{"many pending capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cappedBackoff(tt.pending, interval, 0)
			if got != tt.want {
				t.Errorf("cappedBackoff(%d, %v, 0) = %v, want %v", tt.pending, interval, got, tt.want)
			}
		})
	}
}

func TestCappedBackoff_DefaultCap(t *testing.T) {
	interval := 2 * time.Second
	for pending := 0; pending <= 80; pending++ {
		got := cappedBackoff(pending, interval, 0)
		if got > maxBackoff {
			t.Errorf("cappedBackoff(%d, %v, 0) = %v, exceeds maxBackoff %v", pending, interval, got, maxBackoff)
		}
	}
}

func TestCappedBackoff_CustomLimit(t *testing.T) {
	if got := cappedBackoff(5, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("cappedBackoff = %v, want 10s", got)
	}
	if got := cappedBackoff(0, 45*time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("cappedBackoff with base over limit = %v, want 10s", got)
	}
}

func TestParseBackoffMode(t *testing.T) {
	tests := []struct {
		in   string
		want BackoffMode
		ok   bool
	}{
		{"", BackoffFixed, true},
		{"fixed", BackoffFixed, true},
		{"exponential", BackoffExponential, true},
		{"linear", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseBackoffMode(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseBackoffMode(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
