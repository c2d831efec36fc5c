package main

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core"
	"filecabinet/pkg/core/memory"

	"github.com/prometheus/client_golang/prometheus"
)

func newShell(t *testing.T) (*shell, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	reg := prometheus.NewRegistry()
	return &shell{
		store:    memory.NewStore(nil, core.WithRegisterer(reg)),
		registry: reg,
		archive:  filepath.Join(t.TempDir(), "snapshot.sqlite"),
		out:      out,
		logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
	}, out
}

func mustExec(t *testing.T, sh *shell, out *bytes.Buffer, line, want string) {
	t.Helper()
	out.Reset()
	if err := sh.exec(line); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
	if !strings.Contains(out.String(), want) {
		t.Fatalf("%s: output %q does not contain %q", line, out.String(), want)
	}
}

func TestShellSession(t *testing.T) {
	sh, out := newShell(t)

	mustExec(t, sh, out, `create Jane Doe 1990-05-01 5 3000 F`, "Record #1 is created.")
	mustExec(t, sh, out, `create "Mary Ann" 'Smith' 05/01/1985 2 1500.5 m`, "Record #2 is created.")
	mustExec(t, sh, out, `insert 9 John Roe 1970-01-01 10 200 M`, "Record #9 is created.")
	mustExec(t, sh, out, `find lastname doe`, "#1, Jane, Doe, 1990-05-01, 5, 3000.00, F")
	mustExec(t, sh, out, `get 2`, "#2, Mary Ann, Smith, 1985-05-01, 2, 1500.50, m")
	mustExec(t, sh, out, `select where gender = m and firstname = 'mary ann'`, "#2, Mary Ann")
	mustExec(t, sh, out, `update 9 John Roe 1970-01-01 11 200 M`, "Record #9 is updated.")
	mustExec(t, sh, out, `find exp 11`, "#9, John, Roe")
	mustExec(t, sh, out, `delete 1`, "Record #1 is deleted.")
	mustExec(t, sh, out, `find lastname doe`, "No records.")
	mustExec(t, sh, out, `stat`, "2 record(s), 0 deleted.")
	mustExec(t, sh, out, `purge`, "Purged 0 record(s).")
}

func TestShellErrors(t *testing.T) {
	sh, _ := newShell(t)
	if err := sh.exec(`create Jane Doe 1990-05-01 5 3000`); err == nil {
		t.Fatalf("missing gender should fail")
	}
	if err := sh.exec(`create Jane Doe 2020-05-01 5 3000 F`); !errors.Is(err, common.ErrInvalidRecord) {
		t.Fatalf("out-of-range date: got %v", err)
	}
	if err := sh.exec(`delete 4`); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("delete missing: got %v", err)
	}
	if err := sh.exec(`find nickname x`); err == nil {
		t.Fatalf("unknown field should fail")
	}
	if err := sh.exec(`create "Jane Doe`); err == nil {
		t.Fatalf("unterminated quote should fail")
	}
	if err := sh.exec(`frobnicate`); err == nil {
		t.Fatalf("unknown command should fail")
	}
	if err := sh.exec(`exit`); !errors.Is(err, errExit) {
		t.Fatalf("exit: got %v", err)
	}
}

func TestShellExportImport(t *testing.T) {
	sh, out := newShell(t)
	mustExec(t, sh, out, `create Jane Doe 1990-05-01 5 3000 F`, "#1")
	mustExec(t, sh, out, `create John Doe 1980-05-01 5 3000 M`, "#2")
	mustExec(t, sh, out, `export`, "2 record(s) exported")

	mustExec(t, sh, out, `update 1 Janet Doe 1990-05-01 5 3000 F`, "updated")
	mustExec(t, sh, out, `delete 2`, "deleted")

	other, otherOut := newShell(t)
	other.archive = sh.archive
	mustExec(t, other, otherOut, `create Zed Zee 1980-05-01 1 100 M`, "#1")
	mustExec(t, other, otherOut, `import`, "1 record(s) imported, 1 replaced.")
	mustExec(t, other, otherOut, `list`, "#1, Jane, Doe")
	mustExec(t, other, otherOut, `get 2`, "#2, John, Doe")

	mustExec(t, sh, out, `import`, "1 record(s) imported, 1 replaced.")
	mustExec(t, sh, out, `get 1`, "#1, Jane, Doe")
}

func TestRepl(t *testing.T) {
	sh, out := newShell(t)
	in := strings.NewReader("create Jane Doe 1990-05-01 5 3000 F\nget 7\nlist\nexit\nlist\n")
	if err := repl(sh, in, false); err != nil {
		t.Fatalf("repl: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Error: record #7 not found") {
		t.Fatalf("errors should be reported and the loop continue: %q", got)
	}
	if strings.Count(got, "#1, Jane, Doe") != 1 || !strings.HasSuffix(got, "Bye!\n") {
		t.Fatalf("commands after exit must not run: %q", got)
	}
}

func TestShellStatAndMetrics(t *testing.T) {
	sh, out := newShell(t)
	mustExec(t, sh, out, `create Jane Doe 1990-05-01 5 3000 F`, "#1")
	mustExec(t, sh, out, `find lastname doe`, "#1")
	mustExec(t, sh, out, `find lastname doe`, "#1")
	mustExec(t, sh, out, `stat`, "Lookups: 2, writes: 1, read/write ratio 2.00, cache hit ratio 0.50.")
	mustExec(t, sh, out, `metrics`, `cabinet_cache_hits_total{store="memory"} 1`)
	if !strings.Contains(out.String(), `cabinet_writes_total{store="memory"} 1`) {
		t.Fatalf("writes counter missing: %q", out.String())
	}
}
