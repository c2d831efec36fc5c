package core

import (
	"io"
	"log/slog"

	"filecabinet/pkg/common"
	"filecabinet/pkg/monitor"

	"github.com/prometheus/client_golang/prometheus"
)

// Store is the storage engine surface used by command handlers.
//
// Stores are not safe for concurrent use; callers serialize access to one
// instance. Errors are typed (see package common): a *NotFoundError from
// Delete is meant to be reported, not treated as fatal.
type Store interface {
	Create(candidate common.Record) (int32, error)
	Update(id int32, candidate common.Record) error
	Delete(id int32) error
	Get(id int32) (common.Record, error)
	List() []common.Record
	FindBy(field common.Field, key string) []common.Record
	Stat() Stat
	Purge() (int, error)
	CaptureSnapshot() Snapshot
	Restore(snap Snapshot) (RestoreResult, error)
	// Stats returns the store's workload counters.
	Stats() *monitor.WorkloadStats
	io.Closer
}

// Stat counts live and soft-deleted records.
type Stat struct {
	Active  int
	Deleted int
}

// RestoreResult summarizes an import. Rejected holds one validation error per
// snapshot record that was skipped.
type RestoreResult struct {
	Inserted int
	Replaced int
	Rejected []error
}

// Options tune a store. Zero values are replaced by defaults in BuildOptions.
type Options struct {
	Cache      bool
	Degree     int
	Logger     *slog.Logger
	Registerer prometheus.Registerer
}

type Option func(*Options)

// WithCache turns the lookup cache on or off. Results are the same either way.
func WithCache(enabled bool) Option {
	return func(o *Options) {
		o.Cache = enabled
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithRegisterer exports the store counters to reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registerer = reg
	}
}

// WithIndexDegree sets the B-tree degree of the index set.
func WithIndexDegree(degree int) Option {
	return func(o *Options) {
		o.Degree = degree
	}
}

func BuildOptions(opts ...Option) Options {
	o := Options{Cache: true, Degree: 32}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Degree < 2 {
		o.Degree = 2
	}
	return o
}

// NewTableFromOptions builds the shared record table for a store of the given kind.
func NewTableFromOptions(kind string, o Options) *Table {
	return NewTable(o.Degree, o.Cache, monitor.NewWorkloadStats(o.Registerer, kind))
}
