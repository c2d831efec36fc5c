package storage

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"filecabinet/pkg/common"
)

// SlotFile is a flat file of fixed-size slots. Slot i lives at byte offset
// i*SlotSize; slots are never moved except by Rewrite.
type SlotFile struct {
	file *os.File
	mu   sync.Mutex
	n    int64
}

// OpenSlotFile opens or creates the slot file at path. A length that is not
// a whole number of slots is reported as corruption at the partial tail.
func OpenSlotFile(path string) (*SlotFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := st.Size()
	if rem := size % SlotSize; rem != 0 {
		f.Close()
		return nil, &common.CorruptStorageError{
			Offset: size - rem,
			Err:    fmt.Errorf("trailing %d bytes do not form a slot", rem),
		}
	}
	return &SlotFile{file: f, n: size / SlotSize}, nil
}

func (s *SlotFile) Path() string { return s.file.Name() }

// Count returns the number of slots, live and deleted.
func (s *SlotFile) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *SlotFile) Size() int64 {
	return s.Count() * SlotSize
}

// ReadSlot returns the raw bytes of slot i.
func (s *SlotFile) ReadSlot(i int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.n {
		return nil, fmt.Errorf("slot %d out of range [0,%d)", i, s.n)
	}
	buf := make([]byte, SlotSize)
	if _, err := s.file.ReadAt(buf, i*SlotSize); err != nil {
		return nil, &common.CorruptStorageError{Offset: i * SlotSize, Err: err}
	}
	return buf, nil
}

// WriteSlot encodes r as a live slot over slot i.
func (s *SlotFile) WriteSlot(i int64, r *common.Record) error {
	buf, err := EncodeSlot(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.n {
		return fmt.Errorf("slot %d out of range [0,%d)", i, s.n)
	}
	_, err = s.file.WriteAt(buf, i*SlotSize)
	return err
}

// Append writes r as a new live slot at the end and returns its index.
func (s *SlotFile) Append(r *common.Record) (int64, error) {
	buf, err := EncodeSlot(r)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.WriteAt(buf, s.n*SlotSize); err != nil {
		return 0, err
	}
	s.n++
	return s.n - 1, nil
}

// MarkDeleted flips the status word of slot i. The rest of the slot is kept.
func (s *SlotFile) MarkDeleted(i int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= s.n {
		return fmt.Errorf("slot %d out of range [0,%d)", i, s.n)
	}
	var status [2]byte
	binary.LittleEndian.PutUint16(status[:], StatusDeleted)
	_, err := s.file.WriteAt(status[:], i*SlotSize+offStatus)
	return err
}

// Rewrite replaces the whole file with one live slot per record, in order.
// The new content is written to a temporary file and renamed over the old one.
func (s *SlotFile) Rewrite(records []common.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.file.Name()
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".compact-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	w := bufio.NewWriter(tmp)
	for i := range records {
		buf, err := EncodeSlot(&records[i])
		if err != nil {
			cleanup()
			return err
		}
		if _, err := w.Write(buf); err != nil {
			cleanup()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if err := s.file.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		f, rerr := os.OpenFile(path, os.O_RDWR, 0644)
		if rerr == nil {
			s.file = f
		}
		return err
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	s.file = f
	s.n = int64(len(records))
	return nil
}

func (s *SlotFile) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

func (s *SlotFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// Slot is one entry yielded by a SlotIterator.
type Slot struct {
	Index  int64
	Status uint16
	Raw    []byte
}

func (s Slot) Deleted() bool { return s.Status == StatusDeleted }

// Decode parses the slot payload; decode errors carry the slot's offset.
func (s Slot) Decode() (common.Record, error) {
	r, err := DecodeSlot(s.Raw)
	if err != nil {
		return common.Record{}, &common.CorruptStorageError{Offset: s.Index * SlotSize, Err: err}
	}
	return r, nil
}

type SlotIterator struct {
	reader *bufio.Reader
	file   *os.File
	next   int64
	n      int64
}

// NewIterator scans the slots present when it was created, in file order.
func (s *SlotFile) NewIterator() (*SlotIterator, error) {
	s.mu.Lock()
	n := s.n
	path := s.file.Name()
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &SlotIterator{
		file:   f,
		reader: bufio.NewReaderSize(f, 64*SlotSize),
		n:      n,
	}, nil
}

// Next returns the next slot, or io.EOF after the last one.
func (it *SlotIterator) Next() (Slot, error) {
	if it.next >= it.n {
		return Slot{}, io.EOF
	}
	off := it.next * SlotSize
	buf := make([]byte, SlotSize)
	if _, err := io.ReadFull(it.reader, buf); err != nil {
		return Slot{}, &common.CorruptStorageError{Offset: off, Err: err}
	}
	status, err := SlotStatus(buf)
	if err != nil {
		return Slot{}, &common.CorruptStorageError{Offset: off, Err: err}
	}
	slot := Slot{Index: it.next, Status: status, Raw: buf}
	it.next++
	return slot, nil
}

func (it *SlotIterator) Close() {
	it.file.Close()
}
