package spec

import (
	"slices"
	"strings"
)

// Compiler identifies the toolchain a spec is built with.
type Compiler struct {
	Name    string
	Version string
	CC      string
	CXX     string
	FC      string
	Modules []string
}

// MPI carries the launcher and wrapper commands of an MPI provider.
type MPI struct {
	Name         string
	Version      string
	Exec         string
	NumProcsFlag string
	PostFlags    string
}

// Spec is a fully resolved package build configuration: the package name,
// the chosen version and variant values, the install prefix and the
// resolved dependency specs.
type Spec struct {
	Name    string
	Version string
	Prefix  string

	// Variants maps variant names to their selected values. Boolean
	// variants use "on"/"off". Multi-value variants join values with ",".
	Variants map[string]string

	Compiler Compiler
	MPIInfo  *MPI

	// LibNames are the logical library names this package links as,
	// without the "lib" prefix (e.g. "netcdf" for libnetcdf).
	LibNames []string

	// Components maps a sub-query name (e.g. "hl") to the library names
	// that component contributes. Used by queries like "hdf5:hl,fortran".
	Components map[string][]string

	// External marks a spec provided by the surrounding platform
	// (module system) rather than built from source.
	External       bool
	ExternalModule string

	deps []*Spec
}

// AddDep appends a resolved dependency spec.
func (s *Spec) AddDep(dep *Spec) {
	s.deps = append(s.deps, dep)
}

// Deps returns the direct dependencies in declaration order.
func (s *Spec) Deps() []*Spec {
	return slices.Clone(s.deps)
}

// Dep looks up a dependency by name, searching the whole dependency
// subtree. The query may carry a component selector ("hdf5:hl,fortran"),
// which restricts the returned spec's library names to those components.
func (s *Spec) Dep(query string) (*Spec, bool) {
	name, components, hasComponents := strings.Cut(query, ":")
	found := s.findDep(name)
	if found == nil {
		return nil, false
	}
	if !hasComponents {
		return found, true
	}

	restricted := *found
	restricted.LibNames = nil
	for _, component := range strings.Split(components, ",") {
		restricted.LibNames = append(restricted.LibNames, found.Components[component]...)
	}
	return &restricted, true
}

func (s *Spec) findDep(name string) *Spec {
	for _, dep := range s.deps {
		if dep.Name == name {
			return dep
		}
	}
	for _, dep := range s.deps {
		if found := dep.findDep(name); found != nil {
			return found
		}
	}
	return nil
}

// Variant returns the selected value of a variant, or "" if unset.
func (s *Spec) Variant(name string) string {
	if s.Variants == nil {
		return ""
	}
	return s.Variants[name]
}

// VariantEnabled reports whether a boolean variant is on.
func (s *Spec) VariantEnabled(name string) bool {
	return s.Variant(name) == "on"
}

// VariantContains reports whether a (possibly multi-value) variant
// includes the given value.
func (s *Spec) VariantContains(name, value string) bool {
	for _, v := range strings.Split(s.Variant(name), ",") {
		if v == value {
			return true
		}
	}
	return false
}

// SetVariant records a variant selection.
func (s *Spec) SetVariant(name, value string) {
	if s.Variants == nil {
		s.Variants = make(map[string]string)
	}
	s.Variants[name] = value
}

// IncludeDir returns the conventional include directory under the prefix.
func (s *Spec) IncludeDir() string {
	return s.Prefix + "/include"
}

// LibDir returns the conventional library directory under the prefix.
func (s *Spec) LibDir() string {
	return s.Prefix + "/lib"
}

// String renders the spec in name@version form with variant decorations.
func (s *Spec) String() string {
	var sb strings.Builder
	sb.WriteString(s.Name)
	if s.Version != "" {
		sb.WriteByte('@')
		sb.WriteString(s.Version)
	}
	names := make([]string, 0, len(s.Variants))
	for name := range s.Variants {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		switch s.Variants[name] {
		case "on":
			sb.WriteByte('+')
			sb.WriteString(name)
		case "off":
			sb.WriteByte('~')
			sb.WriteString(name)
		default:
			sb.WriteByte(' ')
			sb.WriteString(name)
			sb.WriteByte('=')
			sb.WriteString(s.Variants[name])
		}
	}
	return sb.String()
}
