// Config loading for the osm CLI.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	configFileName = "config"
	configFileType = "yaml"

	cfgKeyBackend   = "backend"
	cfgKeyRoot      = "root"
	cfgKeyBucket    = "bucket"
	cfgKeyPrefix    = "prefix"
	cfgKeyWorkers   = "workers"
	cfgKeyTimeout   = "timeout"
	cfgKeyRegion    = "region"
	cfgKeyEndpoint  = "endpoint"
	cfgKeyAccessKey = "access_key"
	cfgKeySecretKey = "secret_key"

	defaultBackend = "fs"
	defaultWorkers = 8
)

// loadConfig merges defaults, the config file, OSM_* environment variables,
// and command-line flags, in ascending precedence.
func loadConfig(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, defaultBackend)
	v.SetDefault(cfgKeyWorkers, defaultWorkers)
	v.SetDefault(cfgKeyTimeout, time.Duration(0))

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".osm"))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// A missing default config file is not an error.
	}

	v.SetEnvPrefix("osm")
	v.AutomaticEnv()

	for _, key := range []string{
		cfgKeyBackend, cfgKeyRoot, cfgKeyBucket,
		cfgKeyPrefix, cfgKeyWorkers, cfgKeyTimeout,
	} {
		if flag := cmd.Flags().Lookup(key); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", key, err)
			}
		}
	}

	return v, nil
}
