package cmds

import (
	"os"

	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/pkg/errors"
)

// loadForm reads the initial book card. The read-only status field is kept so
// that it travels in the request as context.
func loadForm(path string, names []string) (fields.Map, error) {
	ret := fields.Map{}
	for _, name := range names {
		ret[name] = fields.Null()
	}
	if path == "" {
		return ret, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read form %s", path)
	}
	m, err := fields.ParseYAML(b)
	if err != nil {
		return nil, errors.Wrapf(err, "could not load form %s", path)
	}
	for k, v := range m {
		ret[k] = v
	}
	return ret, nil
}
