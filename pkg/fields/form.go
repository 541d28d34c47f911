package fields

import (
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/huandu/go-clone"
	"github.com/iancoleman/strcase"
)

// Map is a point-in-time set of field values.
type Map map[string]Value

// Clone returns a deep copy of the map.
func (m Map) Clone() Map {
	if m == nil {
		return Map{}
	}
	return clone.Clone(m).(Map)
}

// Names returns the field names in sorted order.
func (m Map) Names() []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// Form is the page-owned form model. The assistant only ever reads a snapshot
// to build the request context and replaces single fields on patch events.
type Form interface {
	Snapshot() Map
	Set(name string, v Value)
}

// Memory is a goroutine-safe in-memory Form.
type Memory struct {
	mu       sync.RWMutex
	values   Map
	onChange func(name string, v Value)
}

var _ Form = (*Memory)(nil)

type MemoryOption func(*Memory)

// WithOnChange registers a hook called after each Set, outside the lock.
func WithOnChange(f func(name string, v Value)) MemoryOption {
	return func(m *Memory) {
		m.onChange = f
	}
}

func NewMemory(initial Map, options ...MemoryOption) *Memory {
	ret := &Memory{
		values: initial.Clone(),
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (m *Memory) Snapshot() Map {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values.Clone()
}

func (m *Memory) Set(name string, v Value) {
	m.mu.Lock()
	m.values[name] = v
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(name, v)
	}
}

func (m *Memory) Get(name string) (Value, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[name]
	return v, ok
}

// Label turns a field name into a display label, page_count becomes "Page Count".
func Label(name string) string {
	words := strings.Fields(strcase.ToDelimited(name, ' '))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
