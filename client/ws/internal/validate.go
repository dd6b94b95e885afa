// SPDX-License-Identifier: ice License 1.0

package internal

import (
	"crypto/sha1" //nolint:gosec // Mandated by RFC 6455.
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/httphead"
	"github.com/gobwas/ws/wsflate"
	"golang.org/x/net/http/httpguts"

	"github.com/ice-blockchain/wsconnect/client/ws/internal/upgrade"
)

func (e *HandshakeRejectedError) Error() string {
	return fmt.Sprintf("upgrade rejected (%v): %v", e.Status, e.Reason)
}

func (*HandshakeRejectedError) Is(target error) bool {
	return target == upgrade.ErrHandshakeRejected //nolint:errorlint // Sentinel identity.
}

func reject(resp *http.Response, reason string, args ...any) *HandshakeRejectedError {
	status := resp.Status
	if status == "" {
		status = fmt.Sprint(resp.StatusCode)
	}

	return &HandshakeRejectedError{
		StatusCode: resp.StatusCode,
		Status:     status,
		Header:     resp.Header.Clone(),
		Reason:     fmt.Sprintf(reason, args...),
	}
}

// acceptKey is the Sec-WebSocket-Accept the server must answer for key.
func acceptKey(key string) string {
	digest := sha1.Sum([]byte(key + websocketGUID)) //nolint:gosec // Mandated by RFC 6455.

	return base64.StdEncoding.EncodeToString(digest[:])
}

// validateResponse checks the server's answer against what was offered in wire.
func validateResponse(wire *upgrade.WireRequest, resp *http.Response) error {
	if wire.Version() == upgrade.HTTP3 {
		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			return reject(resp, "extended CONNECT was not accepted")
		}
	} else {
		if resp.StatusCode != http.StatusSwitchingProtocols {
			return reject(resp, "expected status %v", http.StatusSwitchingProtocols)
		}
		if !httpguts.HeaderValuesContainsToken(resp.Header.Values(upgrade.HeaderUpgrade), upgrade.UpgradeToken) {
			return reject(resp, "`%v` header does not contain `%v`", upgrade.HeaderUpgrade, upgrade.UpgradeToken)
		}
		if !httpguts.HeaderValuesContainsToken(resp.Header.Values(upgrade.HeaderConnection), "upgrade") {
			return reject(resp, "`%v` header does not contain `upgrade`", upgrade.HeaderConnection)
		}
		if accept := strings.TrimSpace(resp.Header.Get(upgrade.HeaderSecAccept)); accept != acceptKey(wire.Key()) {
			return reject(resp, "invalid `%v` value `%v`", upgrade.HeaderSecAccept, accept)
		}
	}

	return validateNegotiation(upgrade.NewRequestProjection(wire), upgrade.NewResponseProjection(resp), resp)
}

func validateNegotiation(request *upgrade.RequestProjection, response *upgrade.ResponseProjection, resp *http.Response) error {
	switch accepted := response.Tokens(upgrade.HeaderSecProtocol); {
	case len(accepted) > 1:
		return reject(resp, "server selected more than one sub-protocol %v", accepted)
	case len(accepted) == 1 && !request.HasSubProtocol(accepted[0]):
		return reject(resp, "server selected sub-protocol `%v` which was not offered", accepted[0])
	}
	accepted, err := response.AcceptedExtensions()
	if err != nil {
		return reject(resp, "malformed `%v`: %v", upgrade.HeaderSecExtensions, err)
	}
	if len(accepted) == 0 {
		return nil
	}
	offered, err := request.Extensions()
	if err != nil {
		return reject(resp, "malformed offered `%v`: %v", upgrade.HeaderSecExtensions, err)
	}
	for _, ext := range accepted {
		if !containsExtension(offered, ext.Name) {
			return reject(resp, "server accepted extension `%v` which was not offered", ext.Name)
		}
	}
	if _, err = negotiatedCompression(resp.Header); err != nil {
		return reject(resp, "%v", err)
	}

	return nil
}

// negotiatedCompression returns the permessage-deflate parameters the server accepted, nil when none.
// Any other accepted extension is an error, the frame layer has no codec for it.
func negotiatedCompression(header http.Header) (*wsflate.Parameters, error) {
	var params *wsflate.Parameters
	for _, value := range header.Values(upgrade.HeaderSecExtensions) {
		options, ok := httphead.ParseOptions([]byte(value), nil)
		if !ok {
			return nil, errors.Errorf("malformed `%v` value `%v`", upgrade.HeaderSecExtensions, value)
		}
		for _, option := range options {
			if !strings.EqualFold(string(option.Name), wsflate.ExtensionName) {
				return nil, errors.Errorf("no codec for accepted extension `%s`", option.Name)
			}
			if params != nil {
				return nil, errors.Errorf("`%v` accepted more than once", wsflate.ExtensionName)
			}
			params = new(wsflate.Parameters)
			if err := params.Parse(option); err != nil {
				return nil, errors.Wrapf(err, "invalid `%v` parameters", wsflate.ExtensionName)
			}
			// Every message is inflated with a fresh window.
			if !params.ServerNoContextTakeover {
				return nil, errors.New("server context takeover is not supported, offer server_no_context_takeover")
			}
			if params.ClientMaxWindowBits != 0 && params.ClientMaxWindowBits < maxWindowBits {
				return nil, errors.Errorf("client_max_window_bits=%v is below the %v bits used for compression", params.ClientMaxWindowBits, maxWindowBits)
			}
		}
	}

	return params, nil
}

func containsExtension(extensions []upgrade.ExtensionConfig, name string) bool {
	for i := range extensions {
		if strings.EqualFold(extensions[i].Name, name) {
			return true
		}
	}

	return false
}
