package config

import (
	"strings"
	"testing"
)

func TestExpandEnvPlainString(t *testing.T) {
	out, err := expandEnv("127.0.0.1:11211")
	if err != nil {
		t.Fatalf("expandEnv() error = %v", err)
	}
	if out != "127.0.0.1:11211" {
		t.Fatalf("expandEnv() = %q, want input unchanged", out)
	}
}

func TestExpandEnvExpandsVars(t *testing.T) {
	t.Setenv("HOST", "10.0.0.1")
	t.Setenv("PORT", "11211")

	out, err := expandEnv("${HOST}:${PORT}")
	if err != nil {
		t.Fatalf("expandEnv() error = %v", err)
	}
	if out != "10.0.0.1:11211" {
		t.Fatalf("expandEnv() = %q, want %q", out, "10.0.0.1:11211")
	}
}

func TestExpandEnvMissingVarErrors(t *testing.T) {
	t.Setenv("PRESENT", "ok")

	_, err := expandEnv("a=${PRESENT} b=${MISSING_B} c=${MISSING_A}")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "MISSING_A, MISSING_B") {
		t.Fatalf("expected sorted missing names in error, got: %v", err)
	}
}

func TestExpandEnvDollarEscape(t *testing.T) {
	t.Setenv("X", "y")

	out, err := expandEnv("$$${X}")
	if err != nil {
		t.Fatalf("expandEnv() error = %v", err)
	}
	if out != "$y" {
		t.Fatalf("expandEnv() = %q, want %q", out, "$y")
	}
}
