// SPDX-License-Identifier: ice License 1.0

package upgrade

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gobwas/httphead"
	"golang.org/x/net/http/httpguts"
)

// ParseExtensions parses every Sec-WebSocket-Extensions value, in order.
func ParseExtensions(values ...string) ([]ExtensionConfig, error) {
	configs := make([]ExtensionConfig, 0, len(values))
	for _, value := range values {
		options, ok := httphead.ParseOptions([]byte(value), nil)
		if !ok {
			return nil, errors.Wrapf(ErrMalformedRequest, "malformed %v value `%v`", HeaderSecExtensions, value)
		}
		for i := range options {
			configs = append(configs, fromOption(&options[i]))
		}
	}

	return configs, nil
}

// ParseExtension parses a single `name; key=value; flag` definition.
func ParseExtension(value string) (ExtensionConfig, error) {
	configs, err := ParseExtensions(value)
	if err != nil {
		return ExtensionConfig{}, err
	}
	if len(configs) != 1 {
		return ExtensionConfig{}, errors.Wrapf(ErrMalformedRequest, "expected exactly one extension in `%v`, got %v", value, len(configs))
	}

	return configs[0], nil
}

func fromOption(opt *httphead.Option) ExtensionConfig {
	cfg := ExtensionConfig{Name: string(opt.Name)}
	opt.Parameters.ForEach(func(key, value []byte) bool {
		cfg.Parameters = append(cfg.Parameters, ExtensionParameter{Key: string(key), Value: string(value)})

		return true
	})

	return cfg
}

func (e *ExtensionConfig) Parameter(key string) (string, bool) {
	for _, p := range e.Parameters {
		if strings.EqualFold(p.Key, key) {
			return p.Value, true
		}
	}

	return "", false
}

func (e *ExtensionConfig) String() string {
	var b strings.Builder
	b.WriteString(e.Name)
	for _, p := range e.Parameters {
		b.WriteString("; ")
		b.WriteString(p.Key)
		if p.Value == "" {
			continue
		}
		b.WriteByte('=')
		if isToken(p.Value) {
			b.WriteString(p.Value)
		} else {
			writeQuoted(&b, p.Value)
		}
	}

	return b.String()
}

// writeQuoted emits an HTTP quoted-string, only `"` and `\` are escaped.
func writeQuoted(b *strings.Builder, value string) {
	b.WriteByte('"')
	for i := 0; i < len(value); i++ {
		if value[i] == '"' || value[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(value[i])
	}
	b.WriteByte('"')
}

func (e *ExtensionConfig) validate() error {
	if !isToken(e.Name) {
		return errors.Wrapf(ErrMalformedRequest, "invalid extension name `%v`", e.Name)
	}
	for _, p := range e.Parameters {
		if !isToken(p.Key) {
			return errors.Wrapf(ErrMalformedRequest, "invalid parameter `%v` of extension `%v`", p.Key, e.Name)
		}
		if !httpguts.ValidHeaderFieldValue(p.Value) {
			return errors.Wrapf(ErrMalformedRequest, "invalid value for parameter `%v` of extension `%v`", p.Key, e.Name)
		}
	}

	return nil
}

func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !httpguts.IsTokenRune(r) {
			return false
		}
	}

	return true
}
