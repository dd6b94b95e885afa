// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"strings"

	"github.com/cockroachdb/errors"
)

func ParseHTTPVersion(version string) (HTTPVersion, error) {
	if v, found := versionAliases[strings.ToUpper(strings.TrimSpace(version))]; found {
		return v, nil
	}

	return 0, errors.Wrapf(ErrMalformedRequest, "unsupported http version `%v`", version)
}

func (v HTTPVersion) String() string {
	if name, found := versionNames[v]; found {
		return name
	}

	return "HTTP/?"
}

// Major returns 1, 2 or 3 for the supported versions.
func (v HTTPVersion) Major() int {
	switch v {
	case HTTP10, HTTP11:
		return 1
	case HTTP2:
		return 2 //nolint:mnd // HTTP/2.
	case HTTP3:
		return 3 //nolint:mnd // HTTP/3.
	default:
		return 0
	}
}
