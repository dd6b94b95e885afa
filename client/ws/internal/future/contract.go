// SPDX-License-Identifier: ice License 1.0

package future

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// Public API.

type (
	// Future is a single assignment result: it is either resolved with a value or failed with an error, exactly once.
	// Any number of goroutines may observe it.
	Future[T any] struct {
		value     T
		err       error
		done      chan struct{}
		callbacks []func(T, error)
		mx        sync.Mutex
		completed bool
	}
)

var ErrPending = errors.New("future is still pending")
