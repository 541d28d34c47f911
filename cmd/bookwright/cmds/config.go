package cmds

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-go-golems/bookwright/pkg/assistant"
	"github.com/go-go-golems/bookwright/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// commands for manipulating the config file
//
// - store / remove the access token
// - print the effective settings

func NewConfigGroupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the bookwright configuration",
	}

	cmd.AddCommand(NewSetTokenCommand())
	cmd.AddCommand(NewClearTokenCommand())
	cmd.AddCommand(NewShowConfigCommand())

	return cmd
}

// configFile returns the file that was loaded, or where a new one goes.
func configFile() (string, error) {
	if f := viper.ConfigFileUsed(); f != "" {
		return f, nil
	}
	return config.DefaultConfigFile()
}

func credentialKey() string {
	if k := viper.GetString(config.KeyCredentialKey); k != "" {
		return k
	}
	return assistant.DefaultCredentialKey
}

func NewSetTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-token TOKEN",
		Short: "Store the assistant access token in the config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := strings.TrimSpace(args[0])
			if token == "" {
				return fmt.Errorf("token must not be empty")
			}
			file, err := configFile()
			if err != nil {
				return err
			}
			key := credentialKey()
			if err := config.SetValue(file, key, token); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in %s\n", key, file)
			return err
		},
	}
}

func NewClearTokenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-token",
		Short: "Remove the assistant access token from the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := configFile()
			if err != nil {
				return err
			}
			key := credentialKey()
			removed, err := config.UnsetValue(file, key)
			if err != nil {
				return err
			}
			if !removed {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "No %s in %s\n", key, file)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s\n", key, file)
			return err
		},
	}
}

func NewShowConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			token, _ := config.NewViperCredentialStore(viper.GetViper()).Get(settings.CredentialKey)
			return printSettings(cmd.OutOrStdout(), viper.ConfigFileUsed(), settings, token)
		},
	}
}

func printSettings(w io.Writer, file string, s *config.Settings, token string) error {
	out := map[string]interface{}{
		config.KeyURL:            s.URL,
		config.KeyCredentialKey:  s.CredentialKey,
		config.KeyConnectTimeout: s.ConnectTimeout.String(),
		config.KeyPollInterval:   s.PollInterval.String(),
		config.KeyIdleTimeout:    s.IdleTimeout.String(),
		config.KeyFrameInterval:  s.FrameInterval.String(),
		config.KeyRevealFraction: s.RevealFraction,
		config.KeyFields:         s.Fields,
		"token":                  maskToken(token),
	}
	if file != "" {
		out["config-file"] = file
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}

func maskToken(token string) string {
	switch {
	case token == "":
		return "(not set)"
	case len(token) <= 4:
		return "****"
	default:
		return strings.Repeat("*", len(token)-4) + token[len(token)-4:]
	}
}
