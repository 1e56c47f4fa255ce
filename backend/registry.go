package backend

import (
	"fmt"
	"slices"

	"go.uber.org/multierr"

	"github.com/gogpu/gpuactor/id"
)

// Table maps backend tags to implementations.
//
// A Table is built by the embedder and handed to exactly one actor, which
// owns it from then on. There is no process-wide registry.
type Table struct {
	backends map[id.Backend]Backend
	order    []id.Backend
}

// NewTable returns a table holding bs.
func NewTable(bs ...Backend) (*Table, error) {
	t := &Table{backends: make(map[id.Backend]Backend)}
	for _, b := range bs {
		if err := t.Register(b); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Register adds b under its tag.
func (t *Table) Register(b Backend) error {
	if b == nil {
		return fmt.Errorf("backend: nil backend")
	}
	tag := b.Tag()
	if _, ok := t.backends[tag]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBackend, tag)
	}
	t.backends[tag] = b
	t.order = append(t.order, tag)
	return nil
}

// Lookup returns the backend for tag.
func (t *Table) Lookup(tag id.Backend) (Backend, error) {
	b, ok := t.backends[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, tag)
	}
	return b, nil
}

// Has reports whether tag is registered.
func (t *Table) Has(tag id.Backend) bool {
	_, ok := t.backends[tag]
	return ok
}

// Tags returns the registered tags in registration order.
func (t *Table) Tags() []id.Backend {
	return slices.Clone(t.order)
}

// Len returns the number of registered backends.
func (t *Table) Len() int { return len(t.order) }

// Close closes every backend in reverse registration order and returns
// the combined error.
func (t *Table) Close() error {
	var err error
	for _, tag := range slices.Backward(t.order) {
		err = multierr.Append(err, t.closeOne(tag))
	}
	return err
}

func (t *Table) closeOne(tag id.Backend) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: close %s: %v", ErrPanic, tag, r)
		}
	}()
	if cerr := t.backends[tag].Close(); cerr != nil {
		return fmt.Errorf("close %s: %w", tag, cerr)
	}
	return nil
}
