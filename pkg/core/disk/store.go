// Package disk implements the file-backed store: one fixed-size slot per
// record in a single file, soft delete, and purge.
package disk

import (
	"errors"
	"io"
	"log/slog"

	"filecabinet/pkg/common"
	"filecabinet/pkg/core"
	"filecabinet/pkg/monitor"
	"filecabinet/pkg/storage"
	"filecabinet/pkg/validation"
)

// Store persists every mutation to its slot file before applying it to the
// in-memory table, so a failed write leaves both unchanged.
type Store struct {
	file     *storage.SlotFile
	table    *core.Table
	slots    map[int32]int64
	deleted  int
	pipeline *validation.Pipeline
	logger   *slog.Logger
}

var _ core.Store = (*Store)(nil)

// Open loads the slot file at path, creating it when missing, and rebuilds
// the index set from its live slots.
func Open(path string, pipeline *validation.Pipeline, opts ...core.Option) (*Store, error) {
	o := core.BuildOptions(opts...)
	if pipeline == nil {
		pipeline = validation.Default()
	}
	f, err := storage.OpenSlotFile(path)
	if err != nil {
		return nil, err
	}
	s := &Store{
		file:     f,
		table:    core.NewTableFromOptions("file", o),
		slots:    make(map[int32]int64),
		pipeline: pipeline,
		logger:   o.Logger,
	}
	if err := s.load(); err != nil {
		f.Close()
		return nil, err
	}
	s.table.Invalidate()
	s.logger.Debug("file store opened", "path", path, "active", s.table.Len(), "deleted", s.deleted)
	return s, nil
}

func (s *Store) load() error {
	it, err := s.file.NewIterator()
	if err != nil {
		return err
	}
	defer it.Close()

	for {
		slot, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if slot.Deleted() {
			s.deleted++
			continue
		}
		rec, err := slot.Decode()
		if err != nil {
			return err
		}
		if s.table.Has(rec.ID) {
			return &common.CorruptStorageError{
				Offset: slot.Index * storage.SlotSize,
				Err:    errors.New("duplicate live id"),
			}
		}
		s.slots[rec.ID] = slot.Index
		s.table.Load(rec)
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
	idx, err := s.file.Append(&rec)
	if err != nil {
		return 0, err
	}
	s.slots[rec.ID] = idx
	s.table.Insert(rec)
	return rec.ID, nil
}

func (s *Store) Update(id int32, candidate common.Record) error {
	idx, ok := s.slots[id]
	if !ok {
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
	if err := s.file.WriteSlot(idx, &rec); err != nil {
		return err
	}
	s.table.Replace(id, rec)
	return nil
}

// Delete marks the record's slot deleted. The bytes stay until Purge.
func (s *Store) Delete(id int32) error {
	idx, ok := s.slots[id]
	if !ok {
		return &common.NotFoundError{ID: id}
	}
	if err := s.file.MarkDeleted(idx); err != nil {
		return err
	}
	delete(s.slots, id)
	s.deleted++
	s.table.Remove(id)
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
	return core.Stat{Active: s.table.Len(), Deleted: s.deleted}
}

// Purge rewrites the file without deleted slots, keeping record order, and
// returns how many slots were dropped.
func (s *Store) Purge() (int, error) {
	if s.deleted == 0 {
		return 0, nil
	}
	live := s.table.All()
	if err := s.file.Rewrite(live); err != nil {
		return 0, err
	}
	dropped := s.deleted
	s.deleted = 0
	s.slots = make(map[int32]int64, len(live))
	for i, r := range live {
		s.slots[r.ID] = int64(i)
	}
	s.table.Invalidate()
	s.logger.Debug("file store purged", "path", s.file.Path(), "dropped", dropped, "active", len(live))
	return dropped, nil
}

func (s *Store) CaptureSnapshot() core.Snapshot {
	return core.NewSnapshot(s.table.All())
}

func (s *Store) Restore(snap core.Snapshot) (core.RestoreResult, error) {
	res, err := core.ApplySnapshot(upserter{s}, snap)
	s.table.Invalidate()
	if err == nil {
		err = s.file.Sync()
	}
	s.logger.Debug("file store restored", "inserted", res.Inserted, "replaced", res.Replaced, "rejected", len(res.Rejected))
	return res, err
}

func (s *Store) Stats() *monitor.WorkloadStats { return s.table.Stats() }

func (s *Store) Close() error {
	s.table.Reset()
	return s.file.Close()
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
