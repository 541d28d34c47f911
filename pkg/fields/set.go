package fields

import "sort"

const (
	Title       = "title"
	Description = "description"
	PageCount   = "page_count"
	// Status is sent as context but the backend treats it as read-only.
	Status = "status"
)

// Set is the fixed set of field names the backend may patch.
type Set map[string]struct{}

func NewSet(names ...string) Set {
	ret := make(Set, len(names))
	for _, n := range names {
		ret[n] = struct{}{}
	}
	return ret
}

// BookFields are the patchable fields of a book card.
func BookFields() Set {
	return NewSet(Title, Description, PageCount)
}

func (s Set) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

func (s Set) Names() []string {
	ret := make([]string, 0, len(s))
	for k := range s {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
