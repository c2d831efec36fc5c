package core

import (
	"errors"
	"fmt"
	"time"

	"filecabinet/pkg/common"
)

// Snapshot is an immutable copy of a store's records taken at one instant.
// It shares no memory with the store it came from.
type Snapshot struct {
	records []common.Record
	takenAt time.Time
}

// NewSnapshot copies records into a snapshot.
func NewSnapshot(records []common.Record) Snapshot {
	return Snapshot{
		records: append([]common.Record(nil), records...),
		takenAt: time.Now(),
	}
}

// Records returns a copy of the captured records in capture order.
func (s Snapshot) Records() []common.Record {
	return append([]common.Record(nil), s.records...)
}

func (s Snapshot) Len() int { return len(s.records) }

func (s Snapshot) TakenAt() time.Time { return s.takenAt }

// Capture copies every current record of st.
func Capture(st Store) Snapshot {
	return st.CaptureSnapshot()
}

// Restore merges snap into st by id: existing ids are replaced, new ids are
// appended, and records absent from snap are left alone.
func Restore(st Store, snap Snapshot) (RestoreResult, error) {
	return st.Restore(snap)
}

// Upserter is the pair of store operations a restore drives.
type Upserter interface {
	Has(id int32) bool
	InsertWithID(r common.Record) error
	ReplaceByID(r common.Record) error
}

// ApplySnapshot upserts every record of snap through u. A record failing
// validation is rejected on its own; any other error aborts the restore.
func ApplySnapshot(u Upserter, snap Snapshot) (RestoreResult, error) {
	var res RestoreResult
	for _, r := range snap.records {
		if r.ID <= 0 {
			res.Rejected = append(res.Rejected, &common.ValidationError{Field: common.FieldID, Reason: "id must be positive"})
			continue
		}
		var err error
		replace := u.Has(r.ID)
		if replace {
			err = u.ReplaceByID(r)
		} else {
			err = u.InsertWithID(r)
		}
		switch {
		case err == nil && replace:
			res.Replaced++
		case err == nil:
			res.Inserted++
		case errors.Is(err, common.ErrInvalidRecord):
			res.Rejected = append(res.Rejected, fmt.Errorf("record #%d: %w", r.ID, err))
		default:
			return res, err
		}
	}
	return res, nil
}
