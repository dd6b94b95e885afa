// SPDX-License-Identifier: ice License 1.0

package ws

import (
	"github.com/ice-blockchain/wsconnect/client/ws/internal"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/config"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/statistics"
	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

type (
	UpgradeRequest         = upgrade.UpgradeRequest
	ExtensionConfig        = upgrade.ExtensionConfig
	ExtensionParameter     = upgrade.ExtensionParameter
	Endpoint               = upgrade.Endpoint
	HTTPVersion            = upgrade.HTTPVersion
	RequestProjection      = upgrade.RequestProjection
	ResponseProjection     = upgrade.ResponseProjection
	Session                = internal.Session
	SessionFuture          = internal.SessionFuture
	SessionBuilder         = internal.SessionBuilder
	SessionBuilderFunc     = internal.SessionBuilderFunc
	SessionContext         = internal.SessionContext
	Listener               = internal.Listener
	HandshakeRejectedError = internal.HandshakeRejectedError
	Config                 = config.Config
)

type (
	// Client initiates upgrade handshakes, it is safe for concurrent use.
	Client struct {
		handshaker *internal.Handshaker
		builder    *upgrade.Builder
		stats      statistics.Statistics
		cfg        *Config
	}
)

const (
	HTTP10 = upgrade.HTTP10
	HTTP11 = upgrade.HTTP11
	HTTP2  = upgrade.HTTP2
	HTTP3  = upgrade.HTTP3
)

var (
	ErrMalformedRequest    = upgrade.ErrMalformedRequest
	ErrTransportFailure    = upgrade.ErrTransportFailure
	ErrHandshakeRejected   = upgrade.ErrHandshakeRejected
	ErrSessionSetupFailure = upgrade.ErrSessionSetupFailure
	ErrNotAnInteger        = upgrade.ErrNotAnInteger
	ErrUnsupported         = upgrade.ErrUnsupported
)
