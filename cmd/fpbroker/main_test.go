package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/fp-mqtt-broker/internal/service"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv(configEnv, "")
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("resolveConfigPath(\"\") = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv(configEnv, "/etc/fpbroker.yaml")
	if got := resolveConfigPath(""); got != "/etc/fpbroker.yaml" {
		t.Errorf("env path = %q, want /etc/fpbroker.yaml", got)
	}
	if got := resolveConfigPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("flag path = %q, want flag.yaml", got)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand(context.Background(), &out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "fpbroker "+version) {
		t.Errorf("output = %q, want version line", out.String())
	}
}

func TestServe_MissingConfig(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCommand(context.Background(), &out)
	cmd.SetArgs([]string{"serve", "--config", "/nonexistent/path/config.yaml"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("serve with missing config succeeded")
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mqtt:
  broker_host: ""
logging:
  level: error
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx, path)
	if err == nil || !strings.Contains(err.Error(), "mqtt.broker_host") {
		t.Errorf("run() error = %v, want broker_host validation failure", err)
	}
}

func TestRun_BrokerUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mqtt:
  broker_host: "127.0.0.1"
  broker_port: 1
  connect_timeout: 1
logging:
  level: error
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, path); !errors.Is(err, service.ErrConnectFailed) {
		t.Errorf("run() error = %v, want ErrConnectFailed", err)
	}
}
