package support

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("BLOCKLIST_TEST_ENV", "value")
	if got := GetEnv("BLOCKLIST_TEST_ENV", "fallback"); got != "value" {
		t.Fatalf("GetEnv returned %s, want value", got)
	}

	if got := GetEnv("BLOCKLIST_TEST_ENV_MISSING", "fallback"); got != "fallback" {
		t.Fatalf("GetEnv returned %s, want fallback", got)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("BLOCKLIST_TEST_INT", " 42 ")
	if got := GetEnvInt("BLOCKLIST_TEST_INT", 1); got != 42 {
		t.Fatalf("GetEnvInt returned %d, want 42", got)
	}

	t.Setenv("BLOCKLIST_TEST_INT_BAD", "forty")
	if got := GetEnvInt("BLOCKLIST_TEST_INT_BAD", 7); got != 7 {
		t.Fatalf("GetEnvInt with invalid value returned %d, want 7", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("BLOCKLIST_TEST_DURATION", "1500ms")
	if got := GetEnvDuration("BLOCKLIST_TEST_DURATION", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("GetEnvDuration returned %s", got)
	}

	t.Setenv("BLOCKLIST_TEST_DURATION_SECONDS", "30")
	if got := GetEnvDuration("BLOCKLIST_TEST_DURATION_SECONDS", time.Second); got != 30*time.Second {
		t.Fatalf("GetEnvDuration with bare seconds returned %s", got)
	}

	if got := GetEnvDuration("BLOCKLIST_TEST_DURATION_MISSING", time.Minute); got != time.Minute {
		t.Fatalf("GetEnvDuration fallback returned %s", got)
	}
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("BLOCKLIST_TEST_LIST", "https://a.example/list.txt, ,https://b.example/list.txt")
	got := GetEnvList("BLOCKLIST_TEST_LIST")
	if len(got) != 2 || got[0] != "https://a.example/list.txt" || got[1] != "https://b.example/list.txt" {
		t.Fatalf("GetEnvList returned %v", got)
	}

	if got := GetEnvList("BLOCKLIST_TEST_LIST_MISSING"); got != nil {
		t.Fatalf("GetEnvList for missing key returned %v", got)
	}
}
