package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"fleetd/internal/config"
	"fleetd/internal/store"
	"fleetd/pkg/types"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := envLookup
	envLookup = func(k string) string { return env[k] }
	t.Cleanup(func() { envLookup = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	if err != nil || strings.TrimSpace(out) != version {
		t.Fatalf("out=%q err=%v", out, err)
	}
}

func TestLoad_Precedence(t *testing.T) {
	withEnv(t, map[string]string{"FLEETD_ADDR": ":9000", "FLEETD_ONLINE_MODE": "pull"})
	path := filepath.Join(t.TempDir(), "fleetd.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7000\"\nadmins: [root]\nlog_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	opts := &options{configPath: path, logLevel: "warn"}
	cfg, err := opts.load(func(c *config.Config) { c.OnlineMode = config.OnlinePush })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9000" {
		t.Fatalf("env should override file: %q", cfg.Addr)
	}
	if cfg.LogLevel != "warn" || cfg.OnlineMode != config.OnlinePush {
		t.Fatalf("flags should override env: %+v", cfg)
	}
	if !cfg.IsAdmin("root") || cfg.PullConcurrency != 16 {
		t.Fatalf("file and defaults not merged: %+v", cfg)
	}
}

func TestLoad_InvalidMode(t *testing.T) {
	withEnv(t, map[string]string{"FLEETD_ONLINE_MODE": "smoke-signals"})
	if _, err := (&options{}).load(nil); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestNodes_ExportImport(t *testing.T) {
	withEnv(t, nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "src.db")
	dst := filepath.Join(dir, "dst.db")
	file := filepath.Join(dir, "nodes.cbor")

	db, err := store.Open(src)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	n := types.Node{ID: "a", ClientID: uuid.New(), MinerName: "rig-a", MainCoinCode: "ETH"}
	if err := store.NewNodeStore(db).Save(context.Background(), n); err != nil {
		t.Fatalf("save: %v", err)
	}
	db.Close()

	out, err := run(t, "nodes", "export", file, "--db", src, "--log-level", "error")
	if err != nil || !strings.Contains(out, "exported 1 nodes") {
		t.Fatalf("export: out=%q err=%v", out, err)
	}
	out, err = run(t, "nodes", "import", file, "--db", dst, "--log-level", "error")
	if err != nil || !strings.Contains(out, "imported 1 nodes") {
		t.Fatalf("import: out=%q err=%v", out, err)
	}

	db, err = store.Open(dst)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	nodes, err := store.NewNodeStore(db).LoadAll(context.Background())
	if err != nil || len(nodes) != 1 || nodes[0].ClientID != n.ClientID || nodes[0].MinerName != "rig-a" {
		t.Fatalf("imported nodes %+v err=%v", nodes, err)
	}
}

func TestNodes_RequiresSubcommand(t *testing.T) {
	if _, err := run(t, "nodes"); err == nil {
		t.Fatalf("expected error")
	}
}
