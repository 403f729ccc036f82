package config

import (
	"testing"
	"time"
)

func TestProjectKeys(t *testing.T) {
	tests := []struct {
		projects string
		want     []string
	}{
		{"DM,RFC", []string{"DM", "RFC"}},
		{" RFC , DM ", []string{"DM", "RFC"}},
		{"DM,DM,RFC", []string{"DM", "RFC"}},
		{"DM,,RFC,", []string{"DM", "RFC"}},
		{"", nil},
	}

	for _, tt := range tests {
		cfg := JiraConfig{Projects: tt.projects}
		got := cfg.ProjectKeys()
		if len(got) != len(tt.want) {
			t.Errorf("ProjectKeys(%q) = %v, want %v", tt.projects, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ProjectKeys(%q) = %v, want %v", tt.projects, got, tt.want)
				break
			}
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "45s")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("got %v, want 45s", got)
	}

	t.Setenv("TEST_DURATION", "300")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 300*time.Second {
		t.Errorf("got %v, want 300s (bare seconds)", got)
	}

	t.Setenv("TEST_DURATION", "garbage")
	if got := getEnvDuration("TEST_DURATION", time.Minute); got != time.Minute {
		t.Errorf("got %v, want fallback", got)
	}

	if got := getEnvDuration("TEST_DURATION_UNSET", 20*time.Second); got != 20*time.Second {
		t.Errorf("got %v, want fallback for unset variable", got)
	}
}
