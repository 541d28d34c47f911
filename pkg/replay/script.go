// Package replay is a scripted stand-in for the book assistant backend. It
// accepts the same websocket requests and answers every turn with events read
// from a YAML script.
package replay

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Script is the full conversation a server plays back, one Turn per request.
//
//	unavailable: false
//	loop: true
//	turns:
//	  - events:
//	      - {type: thinking, value: "Looking at the title. "}
//	      - {type: info, value: "Done.", delay: 20ms}
//	      - {type: title, value: "Dune"}
//	  - close: {code: 1011, reason: "LLM not available"}
type Script struct {
	// Unavailable closes every connection with 1011 right after the handshake.
	Unavailable bool `yaml:"unavailable,omitempty"`
	// Loop restarts from the first turn once all turns were played.
	Loop bool `yaml:"loop,omitempty"`
	// Delay is the default pause before each event.
	Delay time.Duration `yaml:"delay,omitempty"`
	Turns []Turn        `yaml:"turns"`
}

type Turn struct {
	Events []Event `yaml:"events,omitempty"`
	// Close ends the connection after the events instead of sending end.
	Close *Close `yaml:"close,omitempty"`
	// Hold leaves the turn open after the events, without end or close.
	Hold bool `yaml:"hold,omitempty"`
}

type Event struct {
	Type  string      `yaml:"type,omitempty"`
	Value interface{} `yaml:"value,omitempty"`
	// Raw is sent verbatim instead of a {type, value} message.
	Raw   string        `yaml:"raw,omitempty"`
	Delay time.Duration `yaml:"delay,omitempty"`
}

type Close struct {
	Code   int    `yaml:"code"`
	Reason string `yaml:"reason,omitempty"`
}

func LoadScript(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read script %s", path)
	}
	return ParseScript(b)
}

func ParseScript(b []byte) (*Script, error) {
	s := &Script{}
	if err := yaml.Unmarshal(b, s); err != nil {
		return nil, errors.Wrap(err, "could not parse script")
	}
	for i, t := range s.Turns {
		if t.Close != nil && t.Hold {
			return nil, errors.Errorf("turn %d: close and hold are exclusive", i)
		}
		if t.Close != nil && t.Close.Code == 0 {
			return nil, errors.Errorf("turn %d: close needs a code", i)
		}
		for j, e := range t.Events {
			if e.Type == "" && e.Raw == "" {
				return nil, errors.Errorf("turn %d event %d: type or raw is required", i, j)
			}
		}
	}
	return s, nil
}
