package fields

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestValueJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Value
		out   string
	}{
		{name: "null", input: `null`, want: Null(), out: `null`},
		{name: "string", input: `"Dune"`, want: String("Dune"), out: `"Dune"`},
		{name: "integer", input: `412`, want: Int(412), out: `412`},
		{name: "fraction", input: `1.5`, want: Number(1.5), out: `1.5`},
		{name: "empty string", input: `""`, want: String(""), out: `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))
			assert.Equal(t, tt.want, v)

			b, err := json.Marshal(v)
			require.NoError(t, err)
			assert.Equal(t, tt.out, string(b))
		})
	}
}

func TestValueRejectsNonScalars(t *testing.T) {
	for _, input := range []string{`true`, `{}`, `[1]`} {
		var v Value
		err := json.Unmarshal([]byte(input), &v)
		assert.ErrorIs(t, err, ErrUnsupportedValue, input)
	}
}

func TestMapMarshalsRequestShape(t *testing.T) {
	m := Map{
		Title:     String("Dune"),
		PageCount: Null(),
	}
	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Dune","page_count":null}`, string(b))
}

func TestMemorySnapshotIsIsolated(t *testing.T) {
	changed := []string{}
	form := NewMemory(Map{Title: String("old")}, WithOnChange(func(name string, v Value) {
		changed = append(changed, name+"="+v.String())
	}))

	snap := form.Snapshot()
	form.Set(Title, String("new"))
	form.Set(PageCount, Int(320))

	assert.Equal(t, String("old"), snap[Title])
	_, ok := snap[PageCount]
	assert.False(t, ok)

	v, ok := form.Get(Title)
	require.True(t, ok)
	assert.Equal(t, "new", v.String())
	assert.Equal(t, []string{"title=new", "page_count=320"}, changed)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(320)
	require.NoError(t, err)
	assert.Equal(t, Int(320), v)

	v, err = FromAny(nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = FromAny(true)
	assert.ErrorIs(t, err, ErrUnsupportedValue)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Page Count", Label(PageCount))
	assert.Equal(t, "Title", Label(Title))
}

func TestBookFields(t *testing.T) {
	s := BookFields()
	assert.True(t, s.Contains(Title))
	assert.False(t, s.Contains(Status))
	assert.Equal(t, []string{"description", "page_count", "title"}, s.Names())
}

func TestParseYAML(t *testing.T) {
	m, err := ParseYAML([]byte("title: Dune\npage_count: 412\ndescription: null\nstatus: draft\n"))
	require.NoError(t, err)
	assert.Equal(t, String("Dune"), m[Title])
	assert.Equal(t, Int(412), m[PageCount])
	assert.True(t, m[Description].IsNull())
	assert.Equal(t, String("draft"), m[Status])

	out, err := yaml.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, "description: null\npage_count: 412\nstatus: draft\ntitle: Dune\n", string(out))

	_, err = ParseYAML([]byte("title: [a, b]\n"))
	assert.ErrorIs(t, err, ErrUnsupportedValue)
	_, err = ParseYAML([]byte("title: [\n"))
	assert.Error(t, err)
}
