package recipe

import (
	"fmt"
	"sort"
	"strings"

	"github.com/scibuild/scibuild/pkgs/spec"
)

var registry = make(map[string]*Recipe)

// Register adds a recipe to the global registry. Duplicate names panic:
// recipes are registered from package init and a collision is a
// programming error.
func Register(r *Recipe) {
	if _, ok := registry[r.Name]; ok {
		panic("recipe: duplicate registration of " + r.Name)
	}
	registry[r.Name] = r
}

// Lookup returns a registered recipe by package name.
func Lookup(name string) (*Recipe, bool) {
	r, ok := registry[name]
	return r, ok
}

// All returns the registered recipes sorted by name.
func All() []*Recipe {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	recipes := make([]*Recipe, 0, len(names))
	for _, name := range names {
		recipes = append(recipes, registry[name])
	}
	return recipes
}

// ApplyVariantArgs applies command-line variant selections
// ("exec_space=openmp", "+shared", "~tests") to a spec, validating each
// against the recipe declaration.
func ApplyVariantArgs(r *Recipe, s *spec.Spec, args []string) error {
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "+"):
			if err := r.ValidateVariant(arg[1:], "on"); err != nil {
				return err
			}
			s.SetVariant(arg[1:], "on")
		case strings.HasPrefix(arg, "~"):
			if err := r.ValidateVariant(arg[1:], "off"); err != nil {
				return err
			}
			s.SetVariant(arg[1:], "off")
		default:
			name, value, ok := strings.Cut(arg, "=")
			if !ok {
				return fmt.Errorf("recipe: cannot parse variant argument %q", arg)
			}
			if err := r.ValidateVariant(name, value); err != nil {
				return err
			}
			s.SetVariant(name, value)
		}
	}
	return nil
}
