// Package config reads the client settings from viper, which merges the
// config file, BOOKWRIGHT_* environment variables and command line flags.
package config

import (
	"net/url"
	"time"

	"github.com/go-go-golems/bookwright/pkg/assistant"
	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/typewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	KeyURL            = "url"
	KeyCredentialKey  = "credential-key"
	KeyConnectTimeout = "connect-timeout"
	KeyPollInterval   = "poll-interval"
	KeyIdleTimeout    = "idle-timeout"
	KeyFrameInterval  = "frame-interval"
	KeyRevealFraction = "reveal-fraction"
	KeyFields         = "fields"

	DefaultURL = "ws://localhost:8000/api/llm/book"
)

type Settings struct {
	URL            string
	CredentialKey  string
	ConnectTimeout time.Duration
	PollInterval   time.Duration
	IdleTimeout    time.Duration
	FrameInterval  time.Duration
	RevealFraction float64
	Fields         []string
}

// AddFlags registers the assistant flags on cmd. Bind them with viper.BindPFlags.
func AddFlags(cmd *cobra.Command) {
	fs := cmd.PersistentFlags()
	fs.String(KeyURL, DefaultURL, "Assistant websocket endpoint")
	fs.String(KeyCredentialKey, assistant.DefaultCredentialKey, "Name of the setting holding the access token")
	fs.Duration(KeyConnectTimeout, assistant.DefaultConnectTimeout, "How long to wait for the connection to open")
	fs.Duration(KeyPollInterval, assistant.DefaultPollInterval, "Readiness poll interval while connecting")
	fs.Duration(KeyIdleTimeout, assistant.DefaultIdleTimeout, "End a turn after this long without events (0 disables)")
	fs.Duration(KeyFrameInterval, typewriter.DefaultFrameInterval, "Typewriter frame interval")
	fs.Float64(KeyRevealFraction, typewriter.DefaultFraction, "Fraction of the pending text revealed per frame")
	fs.StringSlice(KeyFields, fields.BookFields().Names(), "Patchable form fields")
}

func FromViper(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		URL:            v.GetString(KeyURL),
		CredentialKey:  v.GetString(KeyCredentialKey),
		ConnectTimeout: v.GetDuration(KeyConnectTimeout),
		PollInterval:   v.GetDuration(KeyPollInterval),
		IdleTimeout:    v.GetDuration(KeyIdleTimeout),
		FrameInterval:  v.GetDuration(KeyFrameInterval),
		RevealFraction: v.GetFloat64(KeyRevealFraction),
		Fields:         v.GetStringSlice(KeyFields),
	}
	if s.URL == "" {
		s.URL = DefaultURL
	}
	if s.CredentialKey == "" {
		s.CredentialKey = assistant.DefaultCredentialKey
	}
	if s.FrameInterval <= 0 {
		s.FrameInterval = typewriter.DefaultFrameInterval
	}
	if len(s.Fields) == 0 {
		s.Fields = fields.BookFields().Names()
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return errors.Wrapf(err, "invalid %s", KeyURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return errors.Errorf("%s must be a ws:// or wss:// url, got %q", KeyURL, s.URL)
	}
	if s.RevealFraction < 0 || s.RevealFraction > 1 {
		return errors.Errorf("%s must be between 0 and 1, got %v", KeyRevealFraction, s.RevealFraction)
	}
	if s.IdleTimeout < 0 {
		return errors.Errorf("%s must not be negative", KeyIdleTimeout)
	}
	for _, f := range s.Fields {
		switch f {
		case "", string(events.EventTypeThinking), string(events.EventTypeInfo), string(events.EventTypeEnd):
			return errors.Errorf("%q cannot be used as a field name", f)
		}
	}
	return nil
}

// AssistantConfig converts the settings to a controller configuration.
func (s *Settings) AssistantConfig() assistant.Config {
	return assistant.Config{
		URL:            s.URL,
		CredentialKey:  s.CredentialKey,
		Fields:         fields.NewSet(s.Fields...),
		ConnectTimeout: s.ConnectTimeout,
		PollInterval:   s.PollInterval,
		IdleTimeout:    s.IdleTimeout,
		RevealFraction: s.RevealFraction,
	}
}

func (s *Settings) Scheduler() typewriter.Scheduler {
	return typewriter.NewFrameScheduler(s.FrameInterval)
}

// ViperCredentialStore reads credentials from viper, so the token can come
// from the config file or BOOKWRIGHT_ACCESS_TOKEN.
type ViperCredentialStore struct {
	v *viper.Viper
}

var _ assistant.CredentialStore = (*ViperCredentialStore)(nil)

func NewViperCredentialStore(v *viper.Viper) *ViperCredentialStore {
	return &ViperCredentialStore{v: v}
}

func (c *ViperCredentialStore) Get(key string) (string, bool) {
	if !c.v.IsSet(key) {
		return "", false
	}
	token := c.v.GetString(key)
	return token, token != ""
}
