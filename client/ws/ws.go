// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"context"
	"crypto/tls"

	"github.com/cockroachdb/errors"

	"github.com/ice-blockchain/wsconnect/cfg"
	"github.com/ice-blockchain/wsconnect/client/ws/internal"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/future"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/http1"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/http3"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/statistics"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
	"github.com/ice-blockchain/wsconnect/log"
)

// New uses the `client/ws/internal/config` yaml key when conf is nil.
func New(conf *Config, builder SessionBuilder) *Client {
	return NewWithTLSConfig(conf, builder, nil)
}

// NewWithTLSConfig is New with the tls.Config used as the base for wss and HTTP/3 targets.
func NewWithTLSConfig(conf *Config, builder SessionBuilder, tlsConfig *tls.Config) *Client {
	if conf == nil {
		conf = cfg.MustGet[Config]()
	}
	if conf.LogLevel != "" {
		if err := log.SetLevel(conf.LogLevel); err != nil {
			log.Error(errors.Wrapf(err, "ignoring log level `%v`", conf.LogLevel))
		}
	}
	stats := statistics.NewStatistics("", conf.Debug)
	transports := map[int]upgrade.Transport{
		HTTP11.Major(): http1.New(conf, tlsConfig),
		HTTP3.Major():  http3.New(conf, tlsConfig),
	}

	return &Client{
		handshaker: internal.NewHandshaker(conf, transports, internal.NewFrameHandlerFactory(conf, builder, stats), stats),
		builder:    &upgrade.Builder{OfferExtensions: conf.OfferExtensions},
		stats:      stats,
		cfg:        conf,
	}
}

// Initiate starts the handshake towards target and returns immediately.
// A malformed target or request yields an already failed future, nothing is sent in that case.
func (c *Client) Initiate(ctx context.Context, generic *UpgradeRequest, target string) *SessionFuture {
	wire, err := upgrade.NewWireRequest(target)
	if err != nil {
		return future.Failed[*Session](err)
	}
	if err = c.builder.Build(generic, wire); err != nil {
		return future.Failed[*Session](err)
	}

	return c.handshaker.Initiate(ctx, wire)
}

// Dial is Initiate that waits for the outcome.
// When ctx ends first the session that may still be established is closed as soon as it is.
func (c *Client) Dial(ctx context.Context, generic *UpgradeRequest, target string) (*Session, error) {
	fut := c.Initiate(ctx, generic, target)
	session, err := fut.Get(ctx)
	if err != nil {
		fut.OnComplete(func(late *Session, _ error) {
			if late != nil {
				if cErr := late.Close(); cErr != nil {
					log.Error(errors.Wrap(cErr, "failed to close abandoned session"))
				}
			}
		})

		return nil, err
	}

	return session, nil
}

func (c *Client) Close() error {
	return errors.Wrap(c.stats.Close(), "failed to close statistics")
}
