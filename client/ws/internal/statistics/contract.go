// SPDX-License-Identifier: ice License 1.0

package statistics

import (
	"io"
	"sync"
	stdlibtime "time"

	"github.com/rcrowley/go-metrics"
)

type (
	Statistics interface {
		io.Closer
		HandshakeStarted()
		HandshakeSucceeded(version string, latency stdlibtime.Duration)
		HandshakeFailed(kind string, latency stdlibtime.Duration)
		MessageSent(size int)
		MessageReceived(size int)
	}
)

type (
	statistics struct {
		metrics   metrics.Registry
		done      chan struct{}
		statsFile string
		closeOnce sync.Once
	}
	noopStats struct{}
)

const (
	handshakeAttempts  = "handshake/attempts"
	handshakeSucceeded = "handshake/succeeded"
	handshakeLatency   = "handshake/latency"
	messagesSent       = "messages/sent"
	messagesReceived   = "messages/received"
	messageSize        = "messages/size"

	dumpInterval     = 60 * stdlibtime.Second
	sampleReservoir  = 10000
	sampleAlpha      = 0.15
	statsFileMode    = 0o644
	defaultStatsFile = "wsconnect-stats.json"
)
