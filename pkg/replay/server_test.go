package replay

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookScript = `
turns:
  - events:
      - {type: thinking, value: "Reading the card. "}
      - {type: info, value: "Setting the title."}
      - {type: title, value: "Dune"}
      - {type: page_count, value: 0}
  - close: {code: 1011, reason: "quota exceeded"}
`

func startServer(t *testing.T, script string, options ...Option) (*Server, string) {
	t.Helper()
	s, err := ParseScript([]byte(script))
	require.NoError(t, err)
	srv := NewServer(s, options...)
	hs := httptest.NewServer(srv)
	t.Cleanup(func() {
		srv.Close()
		hs.Close()
	})
	return srv, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func readAll(t *testing.T, conn *websocket.Conn, n int) []string {
	t.Helper()
	ret := []string{}
	for i := 0; i < n; i++ {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		ret = append(ret, string(data))
	}
	return ret
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript([]byte(`
delay: 10ms
loop: true
turns:
  - events:
      - {type: info, value: "hi", delay: 1s}
      - {raw: "not json"}
    hold: true
`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, s.Delay)
	assert.True(t, s.Loop)
	require.Len(t, s.Turns, 1)
	assert.True(t, s.Turns[0].Hold)
	assert.Equal(t, time.Second, s.Turns[0].Events[0].Delay)
	assert.Equal(t, "not json", s.Turns[0].Events[1].Raw)

	tests := []struct {
		name   string
		script string
	}{
		{"close and hold", "turns: [{close: {code: 1011}, hold: true}]"},
		{"close without code", "turns: [{close: {reason: x}}]"},
		{"event without type", "turns: [{events: [{value: x}]}]"},
		{"not yaml", "turns: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.script))
			assert.Error(t, err)
		})
	}
}

func TestServerPlaysTurns(t *testing.T) {
	srv, url := startServer(t, bookScript)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"prompt": "fill in the title",
		"fields": map[string]interface{}{"title": "", "page_count": nil, "status": "draft"},
	}))

	msgs := readAll(t, conn, 5)
	assert.Equal(t, []string{
		`{"type":"thinking","value":"Reading the card. "}`,
		`{"type":"info","value":"Setting the title."}`,
		`{"type":"title","value":"Dune"}`,
		`{"type":"page_count","value":null}`,
		`{"type":"end","value":""}`,
	}, msgs)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "fill in the title", reqs[0].Prompt)
	assert.True(t, reqs[0].Fields[fields.PageCount].IsNull())
	assert.Equal(t, fields.String("draft"), reqs[0].Fields[fields.Status])

	// the second turn closes the connection with the scripted reason
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"prompt": "again"}))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, websocket.CloseInternalServerErr, ce.Code)
	assert.Equal(t, "quota exceeded", ce.Text)
	assert.Equal(t, 1, srv.Connections())
}

func TestServerRejectsInvalidToken(t *testing.T) {
	_, url := startServer(t, bookScript, WithToken("secret"))

	conn := dial(t, url+"?token=wrong")
	_, _, err := conn.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, websocket.ClosePolicyViolation, ce.Code)

	conn = dial(t, url+"?token=secret")
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"prompt": "hi"}))
	assert.Len(t, readAll(t, conn, 5), 5)
}

func TestServerUnavailable(t *testing.T) {
	_, url := startServer(t, "unavailable: true\nturns: []")
	conn := dial(t, url)
	_, _, err := conn.ReadMessage()
	ce, ok := err.(*websocket.CloseError)
	require.True(t, ok, "expected a close error, got %v", err)
	assert.Equal(t, websocket.CloseInternalServerErr, ce.Code)
	assert.Equal(t, "LLM not available", ce.Text)
}

func TestServerLoops(t *testing.T) {
	_, url := startServer(t, "loop: true\nturns: [{events: [{type: info, value: x}]}]")
	conn := dial(t, url)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.WriteJSON(map[string]interface{}{"prompt": "hi"}))
		assert.Equal(t, []string{`{"type":"info","value":"x"}`, `{"type":"end","value":""}`}, readAll(t, conn, 2))
	}
}

func TestSanitizePageCount(t *testing.T) {
	assert.Equal(t, 320, sanitizePageCount(320))
	assert.Nil(t, sanitizePageCount(0))
	assert.Nil(t, sanitizePageCount(-3))
	assert.Nil(t, sanitizePageCount(1.5))
	assert.Nil(t, sanitizePageCount("ten"))
	assert.Nil(t, sanitizePageCount(nil))
}
