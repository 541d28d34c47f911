package assistant

import (
	"github.com/rs/zerolog/log"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notifier shows a short message to the user, typically as a toast.
type Notifier interface {
	Notify(message string, level Level)
}

type NotifierFunc func(message string, level Level)

func (f NotifierFunc) Notify(message string, level Level) {
	f(message, level)
}

// LogNotifier writes notifications to the global logger.
type LogNotifier struct{}

func (LogNotifier) Notify(message string, level Level) {
	switch level {
	case LevelError:
		log.Error().Str("component", "assistant").Msg(message)
	case LevelWarning:
		log.Warn().Str("component", "assistant").Msg(message)
	default:
		log.Info().Str("component", "assistant").Msg(message)
	}
}

// CredentialStore is the session store holding the user's credential.
type CredentialStore interface {
	Get(key string) (string, bool)
}

// StaticCredentials is a fixed credential map.
type StaticCredentials map[string]string

func (s StaticCredentials) Get(key string) (string, bool) {
	v, ok := s[key]
	return v, ok && v != ""
}
