package fields

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ParseYAML reads a flat mapping of field names to scalars, e.g. a saved book card.
func ParseYAML(b []byte) (Map, error) {
	raw := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, errors.Wrap(err, "could not parse fields")
	}
	ret := Map{}
	for name, x := range raw {
		v, err := FromAny(x)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s", name)
		}
		ret[name] = v
	}
	return ret, nil
}
