package config

import (
	"strings"
	"testing"
)

func TestLoadRejectsMistypedFields(t *testing.T) {
	cases := []struct {
		name, file, body string
	}{
		{"timeout as string", "cfg.json", `{"connect_timeout_ms":"2s"}`},
		{"fractional timeout", "cfg.json", `{"read_timeout_ms":2.5}`},
		{"idle seconds as duration", "cfg.yaml", "queue_idle_timeout_seconds: 30s\n"},
		{"max_queues as list", "cfg.toml", "max_queues=[1,2]\n"},
		{"network cache as word", "cfg.yaml", "network_cache_enabled: sometimes\n"},
		{"origins as scalar map", "cfg.json", `{"cors_origins":{"a":1}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := writeTempFile(t, t.TempDir(), tc.file, tc.body)
			_, err := Load(p)
			if err == nil {
				t.Fatalf("expected parse error for %s", tc.body)
			}
			if !strings.Contains(err.Error(), "parse ") {
				t.Fatalf("error should name the parse step: %v", err)
			}
		})
	}
}

func TestLoadRejectsNegativeLimits(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "cfg.yaml",
		"max_queues: -1\nconnect_timeout_ms: -5\nqueue_idle_timeout_seconds: -30\nlru_size: 10\n")
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, field := range []string{"max_queues", "connect_timeout_ms", "queue_idle_timeout_seconds"} {
		if !strings.Contains(err.Error(), field) {
			t.Fatalf("error does not name %s: %v", field, err)
		}
	}
	if strings.Contains(err.Error(), "lru_size") {
		t.Fatalf("valid lru_size reported: %v", err)
	}
}

func TestValidateAcceptsZeroAsDefault(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config rejected: %v", err)
	}
	if err := (Config{ScreenRefreshRate: -60}).Validate(); err == nil {
		t.Fatalf("negative refresh rate accepted")
	}
	if err := (Config{MaxBodyBytes: -1}).Validate(); err == nil {
		t.Fatalf("negative body limit accepted")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir() + "/lottied.yaml"); err == nil {
		t.Fatalf("expected error for a missing config file")
	}
}
