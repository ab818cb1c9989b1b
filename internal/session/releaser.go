package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrCleanup marks an error raised while releasing session resources.
var ErrCleanup = errors.New("session cleanup failed")

type release struct {
	name string
	fn   func(context.Context) error
}

// Releaser is a stack of acquired resources. Release undoes them in reverse
// order of acquisition.
type Releaser struct {
	mu    sync.Mutex
	stack []release
}

func (r *Releaser) Push(name string, fn func(context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stack = append(r.stack, release{name: name, fn: fn})
}

func (r *Releaser) PushCloser(name string, c io.Closer) {
	r.Push(name, func(context.Context) error { return c.Close() })
}

func (r *Releaser) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stack)
}

// Release runs every release function, newest first, even when some fail.
// Failures are joined under ErrCleanup. The stack is emptied, so a second
// Release is a no-op.
func (r *Releaser) Release(ctx context.Context) error {
	r.mu.Lock()
	stack := r.stack
	r.stack = nil
	r.mu.Unlock()

	var errs []error
	for i := len(stack) - 1; i >= 0; i-- {
		if err := stack[i].fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("release %s: %w", stack[i].name, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrCleanup, errors.Join(errs...))
}
