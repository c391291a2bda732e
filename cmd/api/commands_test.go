package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/kdlab/kdlab-server/internal/config"
)

func newTestApp(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:           "kdlab-server",
		Writer:         out,
		ErrWriter:      out,
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{Name: "check-users", Action: checkUsersAction},
		},
	}
}

func TestCheckUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	content := `[{"id":"alice","password":"secret","name":"Alice"}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write users file: %v", err)
	}

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"kdlab-server", "check-users", path}); err != nil {
		t.Fatalf("check-users returned error: %v", err)
	}
	if !strings.Contains(out.String(), "1 users") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestCheckUsersInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	if err := os.WriteFile(path, []byte(`{broken`), 0o600); err != nil {
		t.Fatalf("failed to write users file: %v", err)
	}

	var out bytes.Buffer
	if err := newTestApp(&out).Run([]string{"kdlab-server", "check-users", path}); err == nil {
		t.Fatal("expected error for invalid users file")
	}
	if err := newTestApp(&out).Run([]string{"kdlab-server", "check-users"}); err == nil {
		t.Fatal("expected usage error without file")
	}
}

func TestSetupSessionsMemory(t *testing.T) {
	cfg := &config.Config{SessionBackend: config.SessionBackendMemory, SessionMaxAge: time.Hour}
	backend, err := setupSessions(context.Background(), cfg)
	if err != nil {
		t.Fatalf("setupSessions returned error: %v", err)
	}
	defer backend.Close()

	record, err := backend.Get(context.Background(), "missing")
	if err != nil || record != nil {
		t.Fatalf("unexpected result: %v, %v", record, err)
	}
}

func TestSetupSessionsUnknown(t *testing.T) {
	cfg := &config.Config{SessionBackend: "bolt", SessionMaxAge: time.Hour}
	if _, err := setupSessions(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
