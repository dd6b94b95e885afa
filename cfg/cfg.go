// SPDX-License-Identifier: ice License 1.0

package cfg

import (
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/ice-blockchain/wsconnect/log"
)

const (
	defaultYAMLConfigurationFilePath = "/etc/wsconnect/wsconnect.yaml"
	modulePath                       = "github.com/ice-blockchain/wsconnect/"
)

var (
	yamlConfigurationFilePathInitializer = new(sync.Once)
	yamlConfigurationFilePath            string
)

func MustInit(absoluteCfgPaths ...string) {
	yamlConfigurationFilePathInitializer.Do(func() { mustInit(absoluteCfgPaths...) })
}

func mustInit(absoluteCfgPaths ...string) {
	yamlConfigurationFilePath = ""
	for _, path := range append(absoluteCfgPaths, defaultYAMLConfigurationFilePath) {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err == nil {
			yamlConfigurationFilePath = path

			break
		}
	}
	if yamlConfigurationFilePath == "" {
		log.Warn("no configuration file found, using zero values",
			log.Any("paths", absoluteCfgPaths), log.String("default", defaultYAMLConfigurationFilePath))
		yamlConfigurationFilePath = defaultYAMLConfigurationFilePath
	}
}

// MustGet unmarshals the yaml key named after T's package path (relative to the module).
func MustGet[T any]() *T {
	var t T
	key := strings.Replace(reflect.TypeOf(t).PkgPath(), modulePath, "", 1)
	if err := viper.UnmarshalKey(key, &t); err != nil {
		log.Panic(errors.Wrapf(err, "could not deserialise `%v` yaml key `%v` into %+v", yamlConfigurationFilePath, key, t))
	}

	return &t
}

// Watch calls onChange every time the loaded configuration file is written to.
func Watch(onChange func()) {
	viper.OnConfigChange(func(evt fsnotify.Event) {
		if evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create) {
			log.Info("configuration changed", log.String("file", evt.Name))
			onChange()
		}
	})
	viper.WatchConfig()
}
