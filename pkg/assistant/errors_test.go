package assistant

import (
	"io"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCloseError(t *testing.T) {
	tests := []struct {
		name     string
		err      *CloseError
		normal   bool
		fatal    bool
		abnormal bool
	}{
		{"normal", &CloseError{Code: 1000}, true, false, false},
		{"reason", &CloseError{Code: 1011, Reason: "quota exceeded"}, false, false, true},
		{"network loss", &CloseError{Code: 1006, Err: io.ErrUnexpectedEOF}, false, true, true},
		{"no status", &CloseError{Code: 1005}, false, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.normal, tt.err.Normal())
			assert.Equal(t, tt.fatal, tt.err.Fatal())
			assert.Equal(t, tt.abnormal, errors.Is(tt.err, ErrAbnormalClose))
		})
	}
	assert.Equal(t, "connection closed (1011): quota exceeded", (&CloseError{Code: 1011, Reason: "quota exceeded"}).Error())
}

func TestAsCloseError(t *testing.T) {
	ce := asCloseError(&websocket.CloseError{Code: 1011, Text: "LLM not available"})
	assert.Equal(t, 1011, ce.Code)
	assert.Equal(t, "LLM not available", ce.Reason)

	ce = asCloseError(&websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: "unexpected EOF"})
	assert.True(t, ce.Fatal())
	assert.Empty(t, ce.Reason)

	ce = asCloseError(errors.Wrap(io.EOF, "read"))
	assert.Equal(t, websocket.CloseAbnormalClosure, ce.Code)
	assert.True(t, ce.Fatal())
}
