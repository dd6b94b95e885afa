// SPDX-License-Identifier: ice License 1.0

package statistics

import (
	"os"
	"path/filepath"
	stdlibtime "time"

	"github.com/cockroachdb/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/ice-blockchain/wsconnect/log"
)

// NewStatistics collects handshake and message metrics and dumps them as json to statsFile
// every minute and on Close. Nothing is collected unless debug is set.
func NewStatistics(statsFile string, debug bool) Statistics {
	if !debug {
		return &noopStats{}
	}
	if statsFile == "" {
		statsFile = filepath.Join(os.TempDir(), defaultStatsFile)
	}
	s := &statistics{
		metrics:   metrics.NewRegistry(),
		statsFile: statsFile,
		done:      make(chan struct{}),
	}
	for name, metric := range map[string]any{
		handshakeAttempts:  metrics.NewCounter(),
		handshakeSucceeded: metrics.NewCounter(),
		handshakeLatency:   metrics.NewTimer(),
		messagesSent:       metrics.NewCounter(),
		messagesReceived:   metrics.NewCounter(),
		messageSize:        metrics.NewHistogram(metrics.NewExpDecaySample(sampleReservoir, sampleAlpha)),
	} {
		if err := s.metrics.Register(name, metric); err != nil {
			log.Panic(errors.Wrapf(err, "failed to register metric %v", name))
		}
	}
	go s.dumpPeriodically()

	return s
}

func (s *statistics) dumpPeriodically() {
	ticker := stdlibtime.NewTicker(dumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.writeJSON()
		case <-s.done:
			return
		}
	}
}

func (s *statistics) writeJSON() {
	statsFile, err := os.OpenFile(s.statsFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, statsFileMode)
	if err != nil {
		log.Error(errors.Wrapf(err, "failed to open %v for stats collection", s.statsFile))

		return
	}
	defer func() {
		log.Error(errors.Wrap(statsFile.Close(), "failed to close stats file"))
	}()
	metrics.WriteJSONOnce(s.metrics, statsFile)
}

func (s *statistics) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeJSON()
	})

	return nil
}

func (s *statistics) HandshakeStarted() {
	s.metrics.Get(handshakeAttempts).(metrics.Counter).Inc(1) //nolint:forcetypeassert // Registered above.
}

func (s *statistics) HandshakeSucceeded(version string, latency stdlibtime.Duration) {
	s.metrics.Get(handshakeSucceeded).(metrics.Counter).Inc(1) //nolint:forcetypeassert // Registered above.
	s.metrics.Get(handshakeLatency).(metrics.Timer).Update(latency) //nolint:forcetypeassert // Registered above.
	s.metrics.GetOrRegister("handshake/version/"+version, metrics.NewCounter).(metrics.Counter).Inc(1) //nolint:forcetypeassert // .
}

func (s *statistics) HandshakeFailed(kind string, latency stdlibtime.Duration) {
	s.metrics.GetOrRegister("handshake/failed/"+kind, metrics.NewCounter).(metrics.Counter).Inc(1) //nolint:forcetypeassert // .
	s.metrics.Get(handshakeLatency).(metrics.Timer).Update(latency) //nolint:forcetypeassert // Registered above.
}

func (s *statistics) MessageSent(size int) {
	s.metrics.Get(messagesSent).(metrics.Counter).Inc(1) //nolint:forcetypeassert // Registered above.
	s.metrics.Get(messageSize).(metrics.Histogram).Update(int64(size)) //nolint:forcetypeassert // Registered above.
}

func (s *statistics) MessageReceived(size int) {
	s.metrics.Get(messagesReceived).(metrics.Counter).Inc(1) //nolint:forcetypeassert // Registered above.
	s.metrics.Get(messageSize).(metrics.Histogram).Update(int64(size)) //nolint:forcetypeassert // Registered above.
}

func (*noopStats) Close() error {
	return nil
}

func (*noopStats) HandshakeStarted() {}

func (*noopStats) HandshakeSucceeded(string, stdlibtime.Duration) {}

func (*noopStats) HandshakeFailed(string, stdlibtime.Duration) {}

func (*noopStats) MessageSent(int) {}

func (*noopStats) MessageReceived(int) {}
