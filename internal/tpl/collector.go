package tpl

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/scibuild/scibuild/pkgs/spec"
)

// Config controls how libraries are collected for a set of TPLs.
type Config struct {
	// Queries maps a dependency name to a component sub-query used to
	// restrict it, e.g. "hdf5" -> "hdf5:hl,fortran".
	Queries map[string]string

	// Overrides maps a dependency name to an explicit library-name
	// list, replacing whatever the resolved spec reports.
	Overrides map[string][]string

	// StaticDenylist lists substrings of libraries that must never be
	// linked statically (e.g. the Cray scientific library). Matching
	// static archives are rewritten to dynamic link flags.
	StaticDenylist []string

	// Shared selects shared library files instead of static archives.
	Shared bool

	// WrapGroups wraps multi-library results in start/end-group linker
	// directives to resolve circular static dependencies.
	WrapGroups bool
}

// TPL describes what is needed to link against one third-party library:
// ordered library references, include directories and library
// directories.
type TPL struct {
	Libs        []string
	IncludeDirs []string
	LibDirs     []string
}

// Collector walks dependency subtrees of a resolved spec and collects
// transitive link libraries, include directories and library
// directories.
type Collector struct {
	root *spec.Spec
	cfg  Config
}

// NewCollector returns a collector over the given resolved spec.
func NewCollector(root *spec.Spec, cfg Config) *Collector {
	return &Collector{root: root, cfg: cfg}
}

// Gather collects libraries for each named TPL. Include and library
// directory lists are deduplicated preserving first-seen order; library
// lists are group-wrapped and denylist-rewritten per the configuration.
// A TPL with no discoverable libraries yields empty collections.
func (c *Collector) Gather(names []string) map[string]TPL {
	out := make(map[string]TPL, len(names))
	for _, name := range names {
		libs, incDirs, libDirs := c.collect(name)

		incDirs = dedup(incDirs)
		libDirs = dedup(libDirs)

		if c.cfg.WrapGroups && len(libs) > 1 {
			libs = dedup(libs)
			libs = append(append([]string{"-Wl,--start-group"}, libs...), "-Wl,--end-group")
		}

		if !c.cfg.Shared && c.denylisted(libs) {
			log.Infof("tpl: %s: rewriting denylisted static archives to dynamic link flags", name)
			libs = rewriteStatic(libs, libDirs, c.cfg.StaticDenylist)
		}

		out[name] = TPL{Libs: libs, IncludeDirs: incDirs, LibDirs: libDirs}
	}
	return out
}

// collect gathers the named dependency and everything it transitively
// depends on. Queries and overrides apply only to the named dependency
// itself; transitive children always contribute their own library
// names. A dependency that resolves to zero library names, or whose
// library search comes up empty, contributes nothing.
func (c *Collector) collect(name string) (libs, incDirs, libDirs []string) {
	query := name
	if q, ok := c.cfg.Queries[name]; ok {
		query = q
	}
	dep, ok := c.root.Dep(query)
	if !ok {
		return nil, nil, nil
	}
	libNames := dep.LibNames
	if override, ok := c.cfg.Overrides[name]; ok {
		libNames = override
	}
	return c.collectSpec(dep, libNames)
}

func (c *Collector) collectSpec(dep *spec.Spec, libNames []string) (libs, incDirs, libDirs []string) {
	if len(libNames) == 0 {
		return nil, nil, nil
	}

	libs, err := FindLibraries(libNames, dep.Prefix, c.cfg.Shared)
	if err != nil {
		if !errors.Is(err, ErrNoLibraries) {
			log.Warnf("tpl: searching %s under %s: %v", dep.Name, dep.Prefix, err)
		}
		// give up on this subtree; empty collections are fine
		return nil, nil, nil
	}

	incDirs = append(incDirs, dep.IncludeDir())
	libDirs = append(libDirs, dep.LibDir())

	for _, child := range dep.Deps() {
		childLibs, childIncs, childLibDirs := c.collectSpec(child, child.LibNames)
		libs = append(libs, childLibs...)
		incDirs = append(incDirs, childIncs...)
		libDirs = append(libDirs, childLibDirs...)
	}
	return libs, incDirs, libDirs
}

func (c *Collector) denylisted(libs []string) bool {
	for _, lib := range libs {
		for _, deny := range c.cfg.StaticDenylist {
			if strings.Contains(lib, deny) {
				return true
			}
		}
	}
	return false
}

var staticArchiveRE = regexp.MustCompile(`^lib(?P<name>.*)\.a$`)

// rewriteStatic replaces every static archive whose path contains a
// denylist substring with "-L<dir>" flags (hoisted from the collected
// library directories) followed by a "-l<name>" flag. Entries that
// match no denylist substring pass through unchanged.
func rewriteStatic(libs, libDirs, denylist []string) []string {
	searchFlags := make([]string, 0, len(libDirs))
	for _, dir := range libDirs {
		searchFlags = append(searchFlags, "-L"+dir)
	}

	var out []string
	for _, lib := range libs {
		matched := false
		for _, deny := range denylist {
			if !strings.Contains(lib, deny) {
				continue
			}
			matched = true
			base := filepath.Base(lib)
			m := staticArchiveRE.FindStringSubmatch(base)
			if m == nil {
				log.Warnf("tpl: %s matched denylist %q but is not a static archive", lib, deny)
				out = append(out, lib)
				break
			}
			linkFlag := "-l" + m[staticArchiveRE.SubexpIndex("name")]
			log.Infof("tpl: %s => %s", lib, linkFlag)
			out = append(out, searchFlags...)
			out = append(out, linkFlag)
			break
		}
		if !matched {
			out = append(out, lib)
		}
	}
	return out
}

// dedup removes duplicates preserving first-seen order.
func dedup(in []string) []string {
	if len(in) == 0 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
