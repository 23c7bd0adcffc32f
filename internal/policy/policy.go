package policy

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// PackagePolicy pins how one package is provided on a platform.
type PackagePolicy struct {
	Version  string            `yaml:"version,omitempty"`
	Variants map[string]string `yaml:"variants,omitempty"`
	External bool              `yaml:"external,omitempty"`
	Module   string            `yaml:"module,omitempty"`
	Default  bool              `yaml:"default,omitempty"`
	Notes    []string          `yaml:"notes,omitempty"`

	// MPI providers carry their launch command here.
	Launcher     string `yaml:"launcher,omitempty"`
	NumProcsFlag string `yaml:"numprocs_flag,omitempty"`
}

// CompilerPolicy names the toolchain a platform builds with.
type CompilerPolicy struct {
	Name    string   `yaml:"name,omitempty"`
	Version string   `yaml:"version,omitempty"`
	CC      string   `yaml:"cc,omitempty"`
	CXX     string   `yaml:"cxx,omitempty"`
	FC      string   `yaml:"fc,omitempty"`
	Modules []string `yaml:"modules,omitempty"`
}

// Policy is the static platform configuration: which packages are
// provided externally, which providers back the virtual packages
// (mpi, blas, lapack), which libraries must never be linked statically
// and which modules a build loads.
type Policy struct {
	System         string                   `yaml:"system,omitempty"`
	Notes          []string                 `yaml:"notes,omitempty"`
	Modules        []string                 `yaml:"modules,omitempty"`
	StaticDenylist []string                 `yaml:"static_denylist,omitempty"`
	Compiler       CompilerPolicy           `yaml:"compiler,omitempty"`
	Virtuals       map[string][]string      `yaml:"virtuals,omitempty"`
	Packages       map[string]PackagePolicy `yaml:"packages,omitempty"`
}

// Load reads a base policy file and, when platform is non-empty, the
// platform overlay next to it (platform/<name>.yaml). Any read or
// parse failure is returned; callers treat it as fatal.
func Load(path, platform string) (*Policy, error) {
	base, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if platform == "" {
		return base, nil
	}

	overlay, err := loadFile(overlayPath(path, platform))
	if err != nil {
		return nil, err
	}
	base.merge(overlay)
	return base, nil
}

func overlayPath(base, platform string) string {
	return filepath.Join(filepath.Dir(base), "platform", platform+".yaml")
}

// HasOverlay reports whether a platform overlay file exists next to the
// base policy. Callers auto-detecting the platform use this to fall
// back to the base policy instead of failing on hosts with no overlay.
func HasOverlay(path, platform string) bool {
	if platform == "" {
		return false
	}
	_, err := os.Stat(overlayPath(path, platform))
	return err == nil
}

func loadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: reading %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes one policy document. Unknown fields and duplicate keys
// are errors, not warnings.
func Parse(data []byte, name string) (*Policy, error) {
	var p Policy
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("policy: parsing %s: %w", name, err)
	}
	return &p, nil
}

// merge folds an overlay into the receiver. Scalars from the overlay
// win, maps merge per key, and notes concatenate so platform files can
// annotate without erasing the base commentary.
func (p *Policy) merge(overlay *Policy) {
	if overlay.System != "" {
		p.System = overlay.System
	}
	p.Notes = append(p.Notes, overlay.Notes...)
	if len(overlay.Modules) > 0 {
		p.Modules = overlay.Modules
	}
	p.StaticDenylist = append(p.StaticDenylist, overlay.StaticDenylist...)
	if overlay.Compiler.Name != "" {
		p.Compiler = overlay.Compiler
	}

	if p.Virtuals == nil {
		p.Virtuals = make(map[string][]string)
	}
	for virtual, providers := range overlay.Virtuals {
		p.Virtuals[virtual] = providers
	}

	if p.Packages == nil {
		p.Packages = make(map[string]PackagePolicy)
	}
	for name, over := range overlay.Packages {
		base := p.Packages[name]
		if over.Version != "" {
			base.Version = over.Version
		}
		if over.Module != "" {
			base.Module = over.Module
		}
		if over.Launcher != "" {
			base.Launcher = over.Launcher
		}
		if over.NumProcsFlag != "" {
			base.NumProcsFlag = over.NumProcsFlag
		}
		if over.External {
			base.External = true
		}
		if over.Default {
			base.Default = true
		}
		if base.Variants == nil && len(over.Variants) > 0 {
			base.Variants = make(map[string]string)
		}
		for k, v := range over.Variants {
			base.Variants[k] = v
		}
		base.Notes = append(base.Notes, over.Notes...)
		p.Packages[name] = base
	}
}

// Provider resolves a virtual package (mpi, blas, lapack) to a concrete
// provider name: the first listed provider, unless one of them carries
// a default marker in the package table.
func (p *Policy) Provider(virtual string) (string, bool) {
	providers := p.Virtuals[virtual]
	if len(providers) == 0 {
		return "", false
	}
	for _, name := range providers {
		if p.Packages[name].Default {
			return name, true
		}
	}
	return providers[0], true
}

// Package returns the policy entry for a package name.
func (p *Policy) Package(name string) (PackagePolicy, bool) {
	pkg, ok := p.Packages[name]
	return pkg, ok
}
