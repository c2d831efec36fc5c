package core_test

import (
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core"
	"filecabinet/pkg/core/disk"
	"filecabinet/pkg/core/memory"

	"github.com/shopspring/decimal"
)

type factory func(t *testing.T, opts ...core.Option) core.Store

func backends() map[string]factory {
	return map[string]factory{
		"memory": func(t *testing.T, opts ...core.Option) core.Store {
			return memory.NewStore(nil, opts...)
		},
		"file": func(t *testing.T, opts ...core.Option) core.Store {
			s, err := disk.Open(filepath.Join(t.TempDir(), "cabinet.dat"), nil, opts...)
			if err != nil {
				t.Fatalf("open file store: %v", err)
			}
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, open factory)) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) { fn(t, open) })
	}
}

func jane() common.Record {
	return common.Record{
		FirstName:     "Jane",
		LastName:      "Doe",
		DateOfBirth:   common.Date(1990, time.May, 1),
		JobExperience: 5,
		MonthlyPay:    decimal.NewFromInt(3000),
		Gender:        'F',
	}
}

var (
	firstNames = []string{"Jane", "john", "Mia", "Omar", "Li"}
	lastNames  = []string{"Doe", "doe", "Smith", "Ng", "Okafor"}
	genders    = []rune{'f', 'F', 'm', 'M'}
)

func randomRecord(rng *rand.Rand) common.Record {
	return common.Record{
		FirstName:     firstNames[rng.Intn(len(firstNames))],
		LastName:      lastNames[rng.Intn(len(lastNames))],
		DateOfBirth:   common.Date(1960+rng.Intn(3), time.Month(1+rng.Intn(2)), 1+rng.Intn(2)),
		JobExperience: int16(rng.Intn(4)),
		MonthlyPay:    decimal.New(int64(20+rng.Intn(3)*100), 0),
		Gender:        genders[rng.Intn(len(genders))],
	}
}

func ids(records []common.Record) []int32 {
	out := make([]int32, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func sameRecords(a, b []common.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// checkIndex compares every indexed lookup against a scan of List.
func checkIndex(t *testing.T, st core.Store) {
	t.Helper()
	all := st.List()
	for _, f := range common.IndexedFields {
		want := map[string][]common.Record{}
		for _, r := range all {
			k := f.Key(&r)
			want[k] = append(want[k], r)
		}
		for key, recs := range want {
			got := st.FindBy(f, strings.ToLower(key))
			if !sameRecords(got, recs) {
				t.Fatalf("%s=%q: index returned %v, scan found %v", f, key, ids(got), ids(recs))
			}
		}
	}
	for _, r := range all {
		got := st.FindBy(common.FieldID, fmt.Sprint(r.ID))
		if len(got) != 1 || !got[0].Equal(r) {
			t.Fatalf("id lookup #%d returned %v", r.ID, got)
		}
	}
}

func TestJaneDoeScenario(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()

		id, err := st.Create(jane())
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		if id != 1 {
			t.Fatalf("first id: got %d, want 1", id)
		}

		got := st.FindBy(common.FieldLastName, "DOE")
		want := jane()
		want.ID = 1
		if len(got) != 1 || !got[0].Equal(want) {
			t.Fatalf("find DOE: got %v", got)
		}

		if err := st.Delete(1); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if got := st.FindBy(common.FieldLastName, "DOE"); len(got) != 0 {
			t.Fatalf("find after delete: got %v", got)
		}

		stat := st.Stat()
		if _, isFile := st.(*disk.Store); isFile {
			if stat != (core.Stat{Active: 0, Deleted: 1}) {
				t.Fatalf("stat before purge: %+v", stat)
			}
		} else if stat != (core.Stat{}) {
			t.Fatalf("stat: %+v", stat)
		}

		if _, err := st.Purge(); err != nil {
			t.Fatalf("purge: %v", err)
		}
		if stat := st.Stat(); stat != (core.Stat{}) {
			t.Fatalf("stat after purge: %+v", stat)
		}
	})
}

func TestIndexStaysConsistent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		rng := rand.New(rand.NewSource(7))

		for step := 0; step < 300; step++ {
			live := st.List()
			switch op := rng.Intn(10); {
			case op < 5 || len(live) == 0:
				if _, err := st.Create(randomRecord(rng)); err != nil {
					t.Fatalf("step %d create: %v", step, err)
				}
			case op < 8:
				target := live[rng.Intn(len(live))].ID
				if err := st.Update(target, randomRecord(rng)); err != nil {
					t.Fatalf("step %d update #%d: %v", step, target, err)
				}
			default:
				target := live[rng.Intn(len(live))].ID
				if err := st.Delete(target); err != nil {
					t.Fatalf("step %d delete #%d: %v", step, target, err)
				}
			}
			if step%25 == 0 {
				if _, err := st.Purge(); err != nil {
					t.Fatalf("step %d purge: %v", step, err)
				}
			}
			checkIndex(t, st)
		}
	})
}

func TestCacheIsTransparent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		cached := open(t, core.WithCache(true))
		plain := open(t, core.WithCache(false))
		defer cached.Close()
		defer plain.Close()
		rng := rand.New(rand.NewSource(11))

		query := func(step int) {
			for _, f := range common.IndexedFields {
				sample := randomRecord(rng)
				key := f.Key(&sample)
				a, b := cached.FindBy(f, key), plain.FindBy(f, key)
				if !sameRecords(a, b) {
					t.Fatalf("step %d %s=%q: cached %v, uncached %v", step, f, key, ids(a), ids(b))
				}
			}
		}

		both := func(op func(st core.Store) error) {
			errA, errB := op(cached), op(plain)
			if (errA == nil) != (errB == nil) {
				t.Fatalf("stores disagree: %v vs %v", errA, errB)
			}
		}

		for step := 0; step < 300; step++ {
			query(step)
			query(step)
			live := plain.List()
			switch op := rng.Intn(10); {
			case op < 4 || len(live) == 0:
				r := randomRecord(rng)
				both(func(st core.Store) error {
					_, err := st.Create(r)
					return err
				})
			case op < 6:
				target := live[rng.Intn(len(live))].ID
				r := randomRecord(rng)
				both(func(st core.Store) error { return st.Update(target, r) })
			case op < 8:
				target := live[rng.Intn(len(live))].ID
				both(func(st core.Store) error { return st.Delete(target) })
			case op < 9:
				changed := randomRecord(rng)
				changed.ID = live[rng.Intn(len(live))].ID
				added := randomRecord(rng)
				added.ID = int32(1000 + step)
				snap := core.NewSnapshot([]common.Record{changed, added})
				both(func(st core.Store) error {
					_, err := st.Restore(snap)
					return err
				})
			default:
				both(func(st core.Store) error {
					_, err := st.Purge()
					return err
				})
			}
		}
		if !sameRecords(cached.List(), plain.List()) {
			t.Fatalf("stores diverged: %v vs %v", ids(cached.List()), ids(plain.List()))
		}
	})
}

func TestCreateAssignsSmallestFreeID(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		for i := 0; i < 3; i++ {
			if _, err := st.Create(jane()); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		if err := st.Delete(2); err != nil {
			t.Fatalf("delete: %v", err)
		}
		id, err := st.Create(jane())
		if err != nil || id != 2 {
			t.Fatalf("reuse freed id: got %d, %v", id, err)
		}

		explicit := jane()
		explicit.ID = 10
		if id, err := st.Create(explicit); err != nil || id != 10 {
			t.Fatalf("explicit id: got %d, %v", id, err)
		}
		if _, err := st.Create(explicit); !errors.Is(err, common.ErrInvalidRecord) {
			t.Fatalf("duplicate explicit id: got %v", err)
		}
		if id, _ := st.Create(jane()); id != 4 {
			t.Fatalf("next id after explicit insert: got %d", id)
		}
		if got := ids(st.List()); fmt.Sprint(got) != "[1 3 2 10 4]" {
			t.Fatalf("list order: %v", got)
		}
	})
}

func TestUpdateKeepsIdentity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		if _, err := st.Create(jane()); err != nil {
			t.Fatalf("create: %v", err)
		}
		second := jane()
		second.FirstName = "Ann"
		if _, err := st.Create(second); err != nil {
			t.Fatalf("create: %v", err)
		}

		upd := jane()
		upd.LastName = "Roe"
		if err := st.Update(1, upd); err != nil {
			t.Fatalf("update: %v", err)
		}
		if got := ids(st.List()); fmt.Sprint(got) != "[1 2]" {
			t.Fatalf("update must not move the record: %v", got)
		}
		if got := st.FindBy(common.FieldLastName, "doe"); fmt.Sprint(ids(got)) != "[2]" {
			t.Fatalf("old key still indexed: %v", ids(got))
		}
		if got := st.FindBy(common.FieldLastName, "roe"); fmt.Sprint(ids(got)) != "[1]" {
			t.Fatalf("new key not indexed: %v", ids(got))
		}

		moved := upd
		moved.ID = 2
		if err := st.Update(1, moved); !errors.Is(err, common.ErrInvalidRecord) {
			t.Fatalf("changing the id: got %v", err)
		}

		var nf *common.NotFoundError
		if err := st.Update(9, upd); !errors.As(err, &nf) || nf.ID != 9 {
			t.Fatalf("update missing: got %v", err)
		}
		if err := st.Delete(9); !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("delete missing: got %v", err)
		}
		if _, err := st.Get(9); !errors.Is(err, common.ErrNotFound) {
			t.Fatalf("get missing: got %v", err)
		}
	})
}

func TestRejectedWriteLeavesStoreUnchanged(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		if _, err := st.Create(jane()); err != nil {
			t.Fatalf("create: %v", err)
		}
		before := st.List()

		bad := jane()
		bad.MonthlyPay = decimal.NewFromInt(5001)
		var verr *common.ValidationError
		if _, err := st.Create(bad); !errors.As(err, &verr) || verr.Field != common.FieldMonthlyPay {
			t.Fatalf("create out-of-range pay: got %v", err)
		}
		if err := st.Update(1, bad); !errors.As(err, &verr) {
			t.Fatalf("update out-of-range pay: got %v", err)
		}
		if !sameRecords(st.List(), before) {
			t.Fatalf("rejected writes changed the store")
		}
		if got := st.FindBy(common.FieldMonthlyPay, "5001"); len(got) != 0 {
			t.Fatalf("rejected pay indexed: %v", got)
		}
	})
}

func TestFindByUnknownKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		if _, err := st.Create(jane()); err != nil {
			t.Fatalf("create: %v", err)
		}
		for _, c := range []struct {
			f   common.Field
			key string
		}{
			{common.FieldLastName, "Nobody"},
			{common.FieldDateOfBirth, "not a date"},
			{common.FieldJobExperience, "five"},
			{common.FieldMonthlyPay, "lots"},
			{common.FieldGender, "FF"},
			{common.FieldID, "x"},
			{common.Field(99), "Doe"},
		} {
			if got := st.FindBy(c.f, c.key); len(got) != 0 {
				t.Fatalf("%s=%q should match nothing, got %v", c.f, c.key, got)
			}
		}
		if got := st.FindBy(common.FieldDateOfBirth, "05/01/1990"); len(got) != 1 {
			t.Fatalf("alternate date layout should match, got %v", got)
		}
		if got := st.FindBy(common.FieldMonthlyPay, "3000.00"); len(got) != 1 {
			t.Fatalf("pay with trailing zeros should match, got %v", got)
		}
		if got := st.FindBy(common.FieldID, "1"); len(got) != 1 || got[0].ID != 1 {
			t.Fatalf("id lookup should match the record, got %v", got)
		}
	})
}

func TestSnapshotIsIsolated(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		if _, err := st.Create(jane()); err != nil {
			t.Fatalf("create: %v", err)
		}
		snap := core.Capture(st)

		upd := jane()
		upd.FirstName = "Changed"
		if err := st.Update(1, upd); err != nil {
			t.Fatalf("update: %v", err)
		}
		if _, err := st.Create(jane()); err != nil {
			t.Fatalf("create: %v", err)
		}
		if snap.Len() != 1 || snap.Records()[0].FirstName != "Jane" {
			t.Fatalf("snapshot followed later writes: %v", snap.Records())
		}

		recs := snap.Records()
		recs[0].FirstName = "Mutated"
		if snap.Records()[0].FirstName != "Jane" {
			t.Fatalf("Records must return a copy")
		}
	})
}

func TestRestoreUpserts(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		st := open(t)
		defer st.Close()
		for i := 0; i < 2; i++ {
			if _, err := st.Create(jane()); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		// Prime the cache so a stale entry would show.
		if got := st.FindBy(common.FieldFirstName, "jane"); len(got) != 2 {
			t.Fatalf("prime: %v", got)
		}

		replaced := jane()
		replaced.ID = 2
		replaced.FirstName = "Zed"
		added := jane()
		added.ID = 7
		invalid := jane()
		invalid.ID = 8
		invalid.Gender = 'x'
		negative := jane()
		negative.ID = -1

		res, err := core.Restore(st, core.NewSnapshot([]common.Record{replaced, added, invalid, negative}))
		if err != nil {
			t.Fatalf("restore: %v", err)
		}
		if res.Inserted != 1 || res.Replaced != 1 || len(res.Rejected) != 2 {
			t.Fatalf("restore result: %+v", res)
		}
		for _, rerr := range res.Rejected {
			if !errors.Is(rerr, common.ErrInvalidRecord) {
				t.Fatalf("rejection should be a validation error: %v", rerr)
			}
		}

		if got := ids(st.List()); fmt.Sprint(got) != "[1 2 7]" {
			t.Fatalf("ids after restore: %v", got)
		}
		if got := st.FindBy(common.FieldFirstName, "jane"); fmt.Sprint(ids(got)) != "[1 7]" {
			t.Fatalf("cache not cleared by restore: %v", ids(got))
		}
		if r, _ := st.Get(2); r.FirstName != "Zed" {
			t.Fatalf("record 2 not replaced: %v", r)
		}
		checkIndex(t, st)
	})
}

func TestRestoreRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, open factory) {
		src := open(t)
		defer src.Close()
		rng := rand.New(rand.NewSource(3))
		for i := 0; i < 20; i++ {
			if _, err := src.Create(randomRecord(rng)); err != nil {
				t.Fatalf("create: %v", err)
			}
		}
		_ = src.Delete(5)

		dst := open(t)
		defer dst.Close()
		res, err := dst.Restore(src.CaptureSnapshot())
		if err != nil {
			t.Fatalf("restore: %v", err)
		}
		if res.Inserted != 19 || len(res.Rejected) != 0 {
			t.Fatalf("restore result: %+v", res)
		}
		if !sameRecords(dst.List(), src.List()) {
			t.Fatalf("restored list differs:\n got %v\nwant %v", ids(dst.List()), ids(src.List()))
		}
		checkIndex(t, dst)
	})
}
