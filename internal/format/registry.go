package format

import "github.com/pkg/errors"

// entry pairs a registry name with its factory, kept in a slice (rather
// than iterating a map) so "the default format is the first entry" from
// spec.md §3 is well defined.
type entry struct {
	name    string
	factory Factory
}

var registry = []entry{
	{name: "GNUPLOT", factory: NewGnuplotWriter},
	{name: "PICKLE", factory: NewPickleWriter},
}

// DefaultFormat is the first entry of the registry.
func DefaultFormat() string {
	return registry[0].name
}

// New builds a fresh Writer for name, or an error if name is not a
// registered format.
func New(name string) (Writer, error) {
	for _, e := range registry {
		if e.name == name {
			return e.factory(), nil
		}
	}
	return nil, errors.Errorf("format: unknown format %q", name)
}

// Names lists the registered format names in registration order.
func Names() []string {
	names := make([]string, len(registry))
	for i, e := range registry {
		names[i] = e.name
	}
	return names
}
