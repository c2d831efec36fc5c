package memory

import (
	"log/slog"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core"
	"filecabinet/pkg/monitor"
	"filecabinet/pkg/validation"
)

// Store keeps the cabinet in memory only. Delete removes records physically.
type Store struct {
	table    *core.Table
	pipeline *validation.Pipeline
	logger   *slog.Logger
}

var _ core.Store = (*Store)(nil)

func NewStore(pipeline *validation.Pipeline, opts ...core.Option) *Store {
	o := core.BuildOptions(opts...)
	if pipeline == nil {
		pipeline = validation.Default()
	}
	return &Store{
		table:    core.NewTableFromOptions("memory", o),
		pipeline: pipeline,
		logger:   o.Logger,
	}
}

// Table exposes the underlying record table, mainly for inspection in tests.
func (s *Store) Table() *core.Table { return s.table }

func (s *Store) Create(candidate common.Record) (int32, error) {
	rec, err := s.pipeline.Validate(candidate)
	if err != nil {
		return 0, err
	}
	if rec.ID == 0 {
		rec.ID = s.table.NextID()
	} else if s.table.Has(rec.ID) {
		return 0, &common.ValidationError{Field: common.FieldID, Reason: "id already in use"}
	}
	s.table.Insert(rec)
	return rec.ID, nil
}

func (s *Store) Update(id int32, candidate common.Record) error {
	if !s.table.Has(id) {
		return &common.NotFoundError{ID: id}
	}
	if candidate.ID != 0 && candidate.ID != id {
		return &common.ValidationError{Field: common.FieldID, Reason: "id cannot change"}
	}
	candidate.ID = id
	rec, err := s.pipeline.Validate(candidate)
	if err != nil {
		return err
	}
	s.table.Replace(id, rec)
	return nil
}

func (s *Store) Delete(id int32) error {
	if _, ok := s.table.Remove(id); !ok {
		return &common.NotFoundError{ID: id}
	}
	return nil
}

func (s *Store) Get(id int32) (common.Record, error) {
	r, ok := s.table.Get(id)
	if !ok {
		return common.Record{}, &common.NotFoundError{ID: id}
	}
	return r, nil
}

func (s *Store) List() []common.Record {
	return s.table.All()
}

func (s *Store) FindBy(field common.Field, key string) []common.Record {
	return s.table.Find(field, key)
}

func (s *Store) Stat() core.Stat {
	return core.Stat{Active: s.table.Len()}
}

// Purge has nothing to compact in memory.
func (s *Store) Purge() (int, error) {
	return 0, nil
}

func (s *Store) CaptureSnapshot() core.Snapshot {
	return core.NewSnapshot(s.table.All())
}

func (s *Store) Restore(snap core.Snapshot) (core.RestoreResult, error) {
	res, err := core.ApplySnapshot(upserter{s}, snap)
	s.table.Invalidate()
	s.logger.Debug("memory store restored", "inserted", res.Inserted, "replaced", res.Replaced, "rejected", len(res.Rejected))
	return res, err
}

func (s *Store) Stats() *monitor.WorkloadStats { return s.table.Stats() }

func (s *Store) Close() error {
	s.table.Reset()
	return nil
}

type upserter struct{ s *Store }

func (u upserter) Has(id int32) bool { return u.s.table.Has(id) }

func (u upserter) InsertWithID(r common.Record) error {
	_, err := u.s.Create(r)
	return err
}

func (u upserter) ReplaceByID(r common.Record) error {
	return u.s.Update(r.ID, r)
}
