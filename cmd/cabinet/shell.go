package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core"
	"filecabinet/pkg/query"
	"filecabinet/pkg/storage"

	"github.com/kballard/go-shellquote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

var errExit = errors.New("exit")

// shell runs one command line at a time against a store.
type shell struct {
	store    core.Store
	registry prometheus.Gatherer
	archive  string
	out      io.Writer
	logger   *slog.Logger
}

const recordUsage = "<first> <last> <date-of-birth> <experience> <pay> <gender>"

func (sh *shell) exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	parts, err := shellquote.Split(line)
	if err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if len(parts) == 0 {
		return nil
	}
	args := parts[1:]

	switch cmd := strings.ToLower(parts[0]); cmd {
	case "create", "add":
		return sh.create(0, args)
	case "insert":
		if len(args) < 1 {
			return fmt.Errorf("usage: insert <id> %s", recordUsage)
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return sh.create(id, args[1:])
	case "update", "edit":
		return sh.update(args)
	case "delete", "del", "rm", "remove":
		return sh.delete(args)
	case "get":
		return sh.get(args)
	case "list":
		sh.print(sh.store.List())
		return nil
	case "find":
		return sh.find(args)
	case "select", "where":
		// The clause is re-read from the raw line so quoting is kept intact.
		return sh.selectWhere(line)
	case "stat":
		sh.stat()
		return nil
	case "metrics":
		return sh.metrics()
	case "purge":
		n, err := sh.store.Purge()
		if err != nil {
			return err
		}
		fmt.Fprintf(sh.out, "Purged %d record(s).\n", n)
		return nil
	case "export":
		return sh.export(args)
	case "import":
		return sh.importArchive(args)
	case "help":
		printHelp(sh.out)
		return nil
	case "exit", "quit":
		fmt.Fprintln(sh.out, "Bye!")
		return errExit
	default:
		return fmt.Errorf("unknown command %q, type 'help'", cmd)
	}
}

func (sh *shell) create(id int32, args []string) error {
	r, err := parseRecord(args)
	if err != nil {
		return err
	}
	r.ID = id
	got, err := sh.store.Create(r)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Record #%d is created.\n", got)
	return nil
}

func (sh *shell) update(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: update <id> %s", recordUsage)
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	r, err := parseRecord(args[1:])
	if err != nil {
		return err
	}
	if err := sh.store.Update(id, r); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Record #%d is updated.\n", id)
	return nil
}

func (sh *shell) delete(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := sh.store.Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Record #%d is deleted.\n", id)
	return nil
}

func (sh *shell) get(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: get <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	r, err := sh.store.Get(id)
	if err != nil {
		return err
	}
	sh.print([]common.Record{r})
	return nil
}

func (sh *shell) find(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: find <field> <value>")
	}
	f, ok := common.ParseField(args[0])
	if !ok {
		return fmt.Errorf("unknown field %q", args[0])
	}
	sh.print(sh.store.FindBy(f, args[1]))
	return nil
}

func (sh *shell) selectWhere(line string) error {
	w, err := query.Parse(line)
	if err != nil {
		return err
	}
	sh.print(query.Execute(sh.store, w))
	return nil
}

func (sh *shell) stat() {
	st := sh.store.Stat()
	fmt.Fprintf(sh.out, "%d record(s), %d deleted.\n", st.Active, st.Deleted)
	ws := sh.store.Stats()
	fmt.Fprintf(sh.out, "Lookups: %d, writes: %d, read/write ratio %.2f, cache hit ratio %.2f.\n",
		atomic.LoadUint64(&ws.ReadCount), atomic.LoadUint64(&ws.WriteCount), ws.GetReadWriteRatio(), ws.GetHitRatio())
}

// metrics prints the registered counters, one series per line.
func (sh *shell) metrics() error {
	if sh.registry == nil {
		return errors.New("no metrics registry")
	}
	families, err := sh.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+strconv.Quote(lp.GetValue()))
			}
			fmt.Fprintf(sh.out, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
	return nil
}

func (sh *shell) export(args []string) error {
	path, err := sh.archivePath(args)
	if err != nil {
		return err
	}
	a, err := storage.OpenArchive(path)
	if err != nil {
		return err
	}
	defer a.Close()

	snap := core.Capture(sh.store)
	if err := a.Save(context.Background(), snap.Records()); err != nil {
		return fmt.Errorf("export to %s: %w", path, err)
	}
	sh.logger.Debug("snapshot exported", "path", path, "records", snap.Len(), "taken_at", snap.TakenAt().Format(time.RFC3339))
	fmt.Fprintf(sh.out, "%d record(s) exported to %s.\n", snap.Len(), path)
	return nil
}

func (sh *shell) importArchive(args []string) error {
	path, err := sh.archivePath(args)
	if err != nil {
		return err
	}
	a, err := storage.OpenArchive(path)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	records, err := a.Load(ctx)
	if err != nil {
		return fmt.Errorf("import from %s: %w", path, err)
	}
	if at, ok, err := a.SavedAt(ctx); err == nil && ok {
		sh.logger.Debug("archive loaded", "path", path, "saved_at", at.Format(time.RFC3339), "records", len(records))
	}
	res, err := core.Restore(sh.store, core.NewSnapshot(records))
	for _, rerr := range res.Rejected {
		fmt.Fprintf(sh.out, "Skipped: %v\n", rerr)
	}
	fmt.Fprintf(sh.out, "%d record(s) imported, %d replaced.\n", res.Inserted, res.Replaced)
	return err
}

func (sh *shell) archivePath(args []string) (string, error) {
	switch len(args) {
	case 0:
		if sh.archive == "" {
			return "", errors.New("no archive path given")
		}
		return sh.archive, nil
	case 1:
		return args[0], nil
	default:
		return "", errors.New("expected at most one archive path")
	}
}

func (sh *shell) print(records []common.Record) {
	if len(records) == 0 {
		fmt.Fprintln(sh.out, "No records.")
		return
	}
	for _, r := range records {
		fmt.Fprintf(sh.out, "#%d, %s, %s, %s, %d, %s, %c\n",
			r.ID, r.FirstName, r.LastName, r.DateOfBirth.Format(common.DateLayout),
			r.JobExperience, r.MonthlyPay.StringFixed(2), r.Gender)
	}
}

func parseID(s string) (int32, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return int32(id), nil
}

// parseRecord reads the six field arguments. Range checks are left to the
// store's validation pipeline.
func parseRecord(args []string) (common.Record, error) {
	if len(args) != 6 {
		return common.Record{}, fmt.Errorf("expected %s", recordUsage)
	}
	dob, err := common.ParseDate(args[2])
	if err != nil {
		return common.Record{}, fmt.Errorf("invalid date of birth %q", args[2])
	}
	exp, err := strconv.ParseInt(args[3], 10, 16)
	if err != nil {
		return common.Record{}, fmt.Errorf("invalid job experience %q", args[3])
	}
	pay, err := decimal.NewFromString(args[4])
	if err != nil {
		return common.Record{}, fmt.Errorf("invalid monthly pay %q", args[4])
	}
	g := []rune(args[5])
	if len(g) != 1 {
		return common.Record{}, fmt.Errorf("gender must be a single character, got %q", args[5])
	}
	return common.Record{
		FirstName:     args[0],
		LastName:      args[1],
		DateOfBirth:   dob,
		JobExperience: int16(exp),
		MonthlyPay:    pay,
		Gender:        g[0],
	}, nil
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `
Commands:
  create `+recordUsage+`          Add a record, id assigned
  insert <id> `+recordUsage+`     Add a record with an explicit id
  update <id> `+recordUsage+`     Replace a record's fields
  delete <id>                     Delete a record
  get <id>                        Show one record
  list                            Show all records
  find <field> <value>            Lookup by one field
  select where <f> = <v> [and|or ...] [limit <n>]
  stat                            Count records and show workload ratios
  metrics                         Print the store counters
  purge                           Compact the slot file
  export [file]                   Save a snapshot to a SQLite archive
  import [file]                   Merge a snapshot from a SQLite archive
  exit                            Leave
`)
}
