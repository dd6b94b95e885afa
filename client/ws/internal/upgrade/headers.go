// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/httphead"
)

func (v headerView) Header(name string) (string, bool) {
	values := v.h.Values(name)
	if len(values) == 0 {
		return "", false
	}

	return values[0], true
}

func (v headerView) Headers(name string) []string {
	return append([]string(nil), v.h.Values(name)...)
}

func (v headerView) HasHeader(name string) bool {
	return len(v.h.Values(name)) > 0
}

// AllHeaders returns a copy, changing it does not affect the underlying message.
func (v headerView) AllHeaders() http.Header {
	return v.h.Clone()
}

// HeaderInt fails with ErrNotAnInteger when the header is absent or not numeric, use HasHeader to check for presence.
func (v headerView) HeaderInt(name string) (int, error) {
	value, found := v.Header(name)
	if !found {
		return 0, errors.Wrapf(ErrNotAnInteger, "header `%v` is absent", name)
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "header `%v` has value `%v`", name, value), ErrNotAnInteger)
	}

	return parsed, nil
}

// Extensions parses Sec-WebSocket-Extensions, empty when absent.
func (v headerView) Extensions() ([]ExtensionConfig, error) {
	return ParseExtensions(v.h.Values(HeaderSecExtensions)...)
}

// Tokens splits every value of the header on commas.
func (v headerView) Tokens(name string) []string {
	values := v.h.Values(name)
	tokens := make([]string, 0, len(values))
	for _, value := range values {
		var scanned []string
		if ok := httphead.ScanTokens([]byte(value), func(token []byte) bool {
			scanned = append(scanned, string(token))

			return true
		}); !ok {
			scanned = nil
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				scanned = append(scanned, trimmed)
			}
		}
		tokens = append(tokens, scanned...)
	}

	return tokens
}

func (v headerView) containsToken(name, token string) bool {
	for _, t := range v.Tokens(name) {
		if strings.EqualFold(t, token) {
			return true
		}
	}

	return false
}
