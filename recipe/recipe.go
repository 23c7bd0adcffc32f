package recipe

import (
	"fmt"
	"strings"

	"github.com/scibuild/scibuild/pkgs/gnu"
	"github.com/scibuild/scibuild/pkgs/spec"
)

// -----------------------------------------------------------------------------

// Version declares one buildable version of a package: either a release
// tarball pinned by digest, or a VCS branch.
type Version struct {
	Version   string
	SHA256    string
	Branch    string
	Preferred bool
}

// Variant declares a named build-time option with its legal values.
// Boolean variants leave Values empty and default to "on"/"off".
// Free variants accept any string (e.g. extra cmake flags).
type Variant struct {
	Name        string
	Default     string
	Values      []string
	Multi       bool
	Free        bool
	Description string
}

// Dependency declares a requirement on another package, optionally
// conditioned on the dependent's resolved spec.
type Dependency struct {
	Spec string   // requirement string, e.g. "hdf5@1.8.9:+hl"
	Type []string // build, link, run
	When string   // constraint on the dependent spec
}

// Conflict declares a spec combination that must not be resolved.
type Conflict struct {
	Spec string
	When string
	Msg  string
}

// Patch declares a source patch, from the recipe data dir or a URL.
type Patch struct {
	Path   string
	URL    string
	SHA256 string
	When   string
	Strip  int
}

// BuildContext carries the per-build state handed to recipe hooks.
type BuildContext struct {
	Spec       *spec.Spec
	StageDir   string // scratch area for generated scripts
	SourceDir  string
	BuildDir   string
	InstallDir string

	// Setenv propagates a variable into the build-time process
	// environment.
	Setenv func(key, value string)
}

// Recipe describes how to fetch, configure and build one package.
type Recipe struct {
	Name        string
	Homepage    string
	URL         string // tarball URL template; {version} is substituted
	Git         string
	Maintainers []string

	// HasCode is false for external-only packages that are provided by
	// the platform (module system) and never fetched or installed.
	HasCode bool

	Versions     []Version
	Variants     []Variant
	Dependencies []Dependency
	Conflicts    []Conflict
	Patches      []Patch

	// LibNames are the logical libraries an installed package links as.
	LibNames   []string
	Components map[string][]string

	// BuildSystem selects the wrapper: "cmake", "autotools" or "".
	BuildSystem string

	// Generator overrides the CMake generator (e.g. "Ninja").
	Generator string

	// KeepGoing tolerates first-pass build failures so that a stricter
	// re-run can report the authoritative result.
	KeepGoing bool

	// RunTests enables the post-build test stage.
	RunTests bool

	// URLForVersion overrides URL-template substitution for packages
	// whose download location changed across versions.
	URLForVersion func(version string) string

	// ConfigureArgs assembles autotools configure arguments.
	ConfigureArgs func(s *spec.Spec) ([]string, error)

	// CMakeArgs assembles cmake -D definitions and options.
	CMakeArgs func(s *spec.Spec) ([]string, error)

	// PreConfigure runs after staging and before configure. The ATDM
	// Trilinos recipe uses it to generate and source its environment
	// scripts.
	PreConfigure func(ctx *BuildContext) error
}

// DefaultVersion returns the preferred version, falling back to the
// highest declared release.
func (r *Recipe) DefaultVersion() string {
	best := ""
	for _, v := range r.Versions {
		if v.Preferred {
			return v.Version
		}
		if v.Branch != "" {
			continue
		}
		if best == "" || gnu.Compare(v.Version, best) > 0 {
			best = v.Version
		}
	}
	if best == "" && len(r.Versions) > 0 {
		best = r.Versions[0].Version
	}
	return best
}

// FindVersion looks up a declared version.
func (r *Recipe) FindVersion(version string) (Version, bool) {
	for _, v := range r.Versions {
		if v.Version == version {
			return v, true
		}
	}
	return Version{}, false
}

// FindVariant looks up a declared variant.
func (r *Recipe) FindVariant(name string) (Variant, bool) {
	for _, v := range r.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// SourceURL returns the download URL for a version.
func (r *Recipe) SourceURL(version string) string {
	if r.URLForVersion != nil {
		return r.URLForVersion(version)
	}
	return strings.ReplaceAll(r.URL, "{version}", version)
}

// ValidateVariant checks a requested variant value against the
// declaration.
func (r *Recipe) ValidateVariant(name, value string) error {
	v, ok := r.FindVariant(name)
	if !ok {
		return fmt.Errorf("recipe %s: unknown variant %q", r.Name, name)
	}
	if v.Free {
		return nil
	}
	if len(v.Values) == 0 {
		if value != "on" && value != "off" {
			return fmt.Errorf("recipe %s: variant %q is boolean, got %q", r.Name, name, value)
		}
		return nil
	}
	values := []string{value}
	if v.Multi {
		values = strings.Split(value, ",")
	}
	for _, val := range values {
		found := false
		for _, legal := range v.Values {
			if val == legal {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("recipe %s: variant %s=%s not in %v", r.Name, name, val, v.Values)
		}
	}
	return nil
}
