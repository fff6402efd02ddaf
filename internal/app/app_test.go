package app

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"

	"blocklist/internal/apperror"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want log.Level
	}{
		{raw: "debug", want: log.DebugLevel},
		{raw: "info", want: log.InfoLevel},
		{raw: "warn", want: log.WarnLevel},
		{raw: "error", want: log.ErrorLevel},
		{raw: "verbose", want: log.InfoLevel},
		{raw: "", want: log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run("level="+tt.raw, func(t *testing.T) {
			if got := parseLogLevel(tt.raw); got != tt.want {
				t.Fatalf("parseLogLevel(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "BLOCKLIST_TEST_FROM_FILE=file\nBLOCKLIST_TEST_PRESET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("BLOCKLIST_TEST_PRESET", "process")
	t.Setenv("BLOCKLIST_TEST_FROM_FILE", "")
	os.Unsetenv("BLOCKLIST_TEST_FROM_FILE")

	if err := loadEnvFile(path, true); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}

	if got := os.Getenv("BLOCKLIST_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("BLOCKLIST_TEST_FROM_FILE = %q, want file", got)
	}
	if got := os.Getenv("BLOCKLIST_TEST_PRESET"); got != "process" {
		t.Fatalf("BLOCKLIST_TEST_PRESET = %q, process env should win", got)
	}
}

func TestLoadEnvFileMissingDefault(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), ".env"), false); err != nil {
		t.Fatalf("missing default env file should only warn, got %v", err)
	}
	if err := loadEnvFile("", true); err != nil {
		t.Fatalf("empty path should be skipped, got %v", err)
	}
}

func TestLoadEnvFileMissingExplicit(t *testing.T) {
	err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env"), true)
	if !apperror.Is(err, apperror.KindEnv) {
		t.Fatalf("explicit missing env file error = %v, want env error", err)
	}
}

func TestFlagPassed(t *testing.T) {
	fs := flag.CommandLine
	t.Cleanup(func() { flag.CommandLine = fs })

	flag.CommandLine = flag.NewFlagSet("blocklist", flag.ContinueOnError)
	flag.String("env-file", ".env", "")
	flag.String("other", "", "")
	if err := flag.CommandLine.Parse([]string{"-env-file", "prod.env"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !flagPassed("env-file") {
		t.Fatal("env-file was set on the command line")
	}
	if flagPassed("other") {
		t.Fatal("other was not set")
	}
}
