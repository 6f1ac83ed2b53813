package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
)

func TestResolveCheckPath_FromArgument(t *testing.T) {
	cmd := &cobra.Command{}
	got, err := resolveCheckPath(cmd, []string{"src/a.go"})
	if err != nil {
		t.Fatalf("resolveCheckPath: %v", err)
	}
	if got != "src/a.go" {
		t.Fatalf("expected src/a.go, got %q", got)
	}
}

func TestResolveCheckPath_FromStdin(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(bytes.NewBufferString("src/b.go\n"))
	got, err := resolveCheckPath(cmd, nil)
	if err != nil {
		t.Fatalf("resolveCheckPath: %v", err)
	}
	if got != "src/b.go" {
		t.Fatalf("expected src/b.go, got %q", got)
	}
}

func TestResolveCheckPath_EmptyStdinIsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(bytes.NewBufferString(""))
	if _, err := resolveCheckPath(cmd, nil); err == nil {
		t.Fatal("expected an error for empty standard input")
	}
}
