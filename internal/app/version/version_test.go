package version

import "testing"

func TestGetPrefersLinkedVersion(t *testing.T) {
	old := buildVersion
	t.Cleanup(func() { buildVersion = old })

	buildVersion = "v1.4.0"
	if got := Get().Version; got != "v1.4.0" {
		t.Fatalf("Get().Version = %q, want v1.4.0", got)
	}

	buildVersion = ""
	if got := Get().Version; got == "" {
		t.Fatal("Get().Version should never be empty")
	}
}
