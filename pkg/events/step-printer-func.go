package events

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"gopkg.in/yaml.v3"
)

// TranscriptPrinterFunc returns a router handler that prints the event tap as
// a readable trace, one line per text delta and a YAML document per patch.
func TranscriptPrinterFunc(w io.Writer) func(msg *message.Message) error {
	lastKind := ""

	return func(msg *message.Message) error {
		defer msg.Ack()

		var e Envelope
		if err := json.Unmarshal(msg.Payload, &e); err != nil {
			return err
		}

		if e.Kind != lastKind {
			if _, err := fmt.Fprintf(w, "\n--- %s [%s] ---\n", e.Kind, e.TurnID); err != nil {
				return err
			}
			lastKind = e.Kind
		}

		switch e.Kind {
		case KindReasoning.String(), KindNarrative.String():
			text, err := decodeText(e.Value)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s", text)
			return err

		case KindPatch.String():
			var v fields.Value
			if len(e.Value) > 0 {
				if err := json.Unmarshal(e.Value, &v); err != nil {
					return err
				}
			}
			b, err := yaml.Marshal(map[string]interface{}{
				"seq":   e.Seq,
				"field": string(e.Type),
				"value": v.Interface(),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "%s", b)
			return err

		case KindEnd.String():
			_, err := fmt.Fprintf(w, "(end of turn)\n")
			return err

		default:
			_, err := fmt.Fprintf(w, "[ignored %s]\n", e.Type)
			return err
		}
	}
}
