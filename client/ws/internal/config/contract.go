// SPDX-License-Identifier: ice License 1.0

package config

import stdlibtime "time"

type (
	Config struct {
		Origin             string              `yaml:"origin" mapstructure:"origin"`
		UserAgent          string              `yaml:"userAgent" mapstructure:"userAgent"`
		LogLevel           string              `yaml:"logLevel" mapstructure:"logLevel"`
		DialTimeout        stdlibtime.Duration `yaml:"dialTimeout" mapstructure:"dialTimeout"`
		HandshakeTimeout   stdlibtime.Duration `yaml:"handshakeTimeout" mapstructure:"handshakeTimeout"`
		WriteTimeout       stdlibtime.Duration `yaml:"writeTimeout" mapstructure:"writeTimeout"`
		ReadTimeout        stdlibtime.Duration `yaml:"readTimeout" mapstructure:"readTimeout"`
		MaxMessageSize     int64               `yaml:"maxMessageSize" mapstructure:"maxMessageSize"`
		OfferExtensions    bool                `yaml:"offerExtensions" mapstructure:"offerExtensions"`
		InsecureSkipVerify bool                `yaml:"insecureSkipVerify" mapstructure:"insecureSkipVerify"`
		Debug              bool                `yaml:"debug" mapstructure:"debug"`
	}
)
