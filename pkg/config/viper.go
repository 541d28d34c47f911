package config

import (
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const AppName = "bookwright"

var envKeyReplacer = strings.NewReplacer("-", "_")

// InitViper loads the config file and the environment into v. An explicit
// configPath wins over the search path.
func InitViper(v *viper.Viper, configPath string) error {
	// Load the variables from the environment
	v.SetEnvPrefix(AppName)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/." + AppName)
		v.AddConfigPath("/etc/" + AppName)

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			v.AddConfigPath(xdgConfigPath + "/" + AppName)
		}
	}

	err := v.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil {
		return err
	}
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	log.Debug().
		Str("config", v.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}
