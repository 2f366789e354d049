package scheduler

import (
	"context"
	"reflect"

	"github.com/spl-robotics/fieldctrld/resource"
)

// RunFunc is a system's body. It receives the resource store it may
// borrow from per its declared Reads/Writes.
type RunFunc func(ctx context.Context, store *resource.Store) error

// System is a named callable that declares a set of typed reads and
// writes, a stage tag, and optional explicit predecessors/successors.
type System struct {
	Name    string
	Stage   Stage
	Reads   []reflect.Type
	Writes  []reflect.Type
	Before  []string
	After   []string
	Run     RunFunc
}

// ReadsType declares a read dependency on T by type identity.
func ReadsType[T any](s *System) {
	s.Reads = append(s.Reads, resource.TypeOf[T]())
}

// WritesType declares a write dependency on T by type identity.
func WritesType[T any](s *System) {
	s.Writes = append(s.Writes, resource.TypeOf[T]())
}

func (s System) writeSet() map[reflect.Type]struct{} {
	set := make(map[reflect.Type]struct{}, len(s.Writes))
	for _, t := range s.Writes {
		set[t] = struct{}{}
	}
	return set
}

func (s System) readsOrWrites(t reflect.Type) bool {
	for _, r := range s.Reads {
		if r == t {
			return true
		}
	}
	for _, w := range s.Writes {
		if w == t {
			return true
		}
	}
	return false
}

// SystemError wraps a failing system's error with its name and
// whether the scheduler must treat the failure as fatal.
type SystemError struct {
	System string
	Err    error
	Fatal  bool
}

func (e *SystemError) Error() string {
	return "scheduler: system " + e.System + " failed: " + e.Err.Error()
}

func (e *SystemError) Unwrap() error { return e.Err }
