package recipe

import (
	"github.com/scibuild/scibuild/pkgs/spec"
)

// EnableOrDisable renders a boolean variant as an autotools
// "--enable-<name>" or "--disable-<name>" flag.
func EnableOrDisable(s *spec.Spec, name string) string {
	if s.VariantEnabled(name) {
		return "--enable-" + name
	}
	return "--disable-" + name
}

// WithOrWithout renders a boolean variant as an autotools
// "--with-<name>" or "--without-<name>" flag.
func WithOrWithout(s *spec.Spec, name string) string {
	if s.VariantEnabled(name) {
		return "--with-" + name
	}
	return "--without-" + name
}

// Define renders a cmake cache definition.
func Define(name, value string) string {
	return "-D" + name + "=" + value
}

// DefineBool renders a cmake boolean cache definition.
func DefineBool(name string, value bool) string {
	if value {
		return "-D" + name + "=ON"
	}
	return "-D" + name + "=OFF"
}
