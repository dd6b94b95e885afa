// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"context"
	stdlibtime "time"
)

type deadliner interface {
	SetDeadline(t stdlibtime.Time) error
}

// AbortOnDone moves conn's deadline to the past once ctx is done, which unblocks pending I/O.
// The returned release must be called when the exchange is over: it waits for a triggered abort
// to finish and clears the deadline so the connection stays usable afterwards.
func AbortOnDone(ctx context.Context, conn deadliner) (release func()) {
	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(aborted)
		_ = conn.SetDeadline(stdlibtime.Unix(1, 0)) //nolint:errcheck // Best effort.
	})

	return func() {
		if stop() {
			return
		}
		<-aborted
		_ = conn.SetDeadline(stdlibtime.Time{}) //nolint:errcheck // Best effort.
	}
}
