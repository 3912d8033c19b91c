package main

import (
	"bytes"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/taskledger/comms"
	"github.com/GoCodeAlone/taskledger/config"
	"github.com/GoCodeAlone/taskledger/server"
	"github.com/GoCodeAlone/taskledger/task"
)

func newTestServer(t *testing.T) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("k"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.DefaultConfig()
	cfg.Auth.JWTSecret = "cli-test"
	cfg.Auth.Keys = []config.KeyConfig{{Owner: "0xa", KeyHash: string(hash)}}

	bus := comms.NewInMemoryBus(0)
	srv := server.New(*cfg, "test", nil)
	srv.SetLedger(task.NewLedger(task.NewMemoryStore(), task.WithBus(bus)))
	srv.SetBus(bus)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts.URL
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

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("taskledger %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func loginToken(t *testing.T, url string) string {
	t.Helper()
	out := mustRun(t, "--server", url, "login", "--owner", "0xA", "--key", "k")
	for _, line := range strings.Split(out, "\n") {
		if tok, ok := strings.CutPrefix(line, "export TASKLEDGER_TOKEN="); ok {
			return tok
		}
	}
	t.Fatalf("no token in login output:\n%s", out)
	return ""
}

func TestCLI_Workflow(t *testing.T) {
	url := newTestServer(t)
	tok := loginToken(t, url)
	cli := func(args ...string) string {
		return mustRun(t, append([]string{"--server", url, "--token", tok}, args...)...)
	}

	if out := cli("add", "buy", "milk"); out != "created task 0\n" {
		t.Errorf("add output = %q", out)
	}
	cli("add", "walk dog")
	cli("add", "file taxes")

	if out := cli("toggle", "1"); out != "task 1 done\n" {
		t.Errorf("toggle output = %q", out)
	}
	cli("rm", "2")
	cli("edit", "0", "buy", "oat", "milk")

	ls := cli("ls")
	if !strings.Contains(ls, "buy oat milk") || !strings.Contains(ls, "walk dog") {
		t.Errorf("ls missing live tasks:\n%s", ls)
	}
	if strings.Contains(ls, "deleted") {
		t.Errorf("ls should hide tombstones:\n%s", ls)
	}

	pending := cli("ls", "--pending")
	if !strings.Contains(pending, "buy oat milk") || strings.Contains(pending, "walk dog") {
		t.Errorf("ls --pending:\n%s", pending)
	}
	completed := cli("ls", "--completed")
	if !strings.Contains(completed, "walk dog") || strings.Contains(completed, "buy oat milk") {
		t.Errorf("ls --completed:\n%s", completed)
	}

	if out := cli("count"); out != "2\n" {
		t.Errorf("count = %q, want 2", out)
	}
	if out := cli("count", "0xa"); out != "2\n" {
		t.Errorf("count 0xa = %q, want 2", out)
	}

	show := cli("show", "2")
	if !strings.Contains(show, "deleted") {
		t.Errorf("show of tombstone:\n%s", show)
	}

	events := cli("events", "--limit", "2")
	if !strings.Contains(events, "task_deleted") || !strings.Contains(events, "task_updated") {
		t.Errorf("events:\n%s", events)
	}

	path := filepath.Join(t.TempDir(), "tasks.xlsx")
	if out := cli("export", path); out != "exported 2 tasks to "+path+"\n" {
		t.Errorf("export output = %q", out)
	}
}

func TestCLI_Errors(t *testing.T) {
	url := newTestServer(t)
	tok := loginToken(t, url)

	if _, err := run(t, "--server", url, "--token", tok, "toggle", "7"); err == nil {
		t.Error("toggle of missing task should fail")
	}
	if _, err := run(t, "--server", url, "--token", tok, "toggle", "x"); err == nil || !strings.Contains(err.Error(), "invalid task id") {
		t.Errorf("toggle x: err = %v", err)
	}
	if _, err := run(t, "--server", url, "--token", tok, "ls", "--pending", "--completed"); err == nil {
		t.Error("--pending and --completed should be mutually exclusive")
	}
	if _, err := run(t, "--server", url, "--token", "", "ls"); err == nil {
		t.Error("ls without token should fail")
	}
	if _, err := run(t, "--server", url, "login", "--owner", "0xa", "--key", "wrong"); err == nil {
		t.Error("login with wrong key should fail")
	}
}

func TestCLI_HashKey(t *testing.T) {
	out := mustRun(t, "hash-key", "s3cret")
	hash := strings.TrimSpace(out)
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("hash-key output does not verify: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo wörld", 5); got != "héll…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate = %q", got)
	}
}
