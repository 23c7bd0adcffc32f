package resolve

import (
	"fmt"

	"github.com/qiniu/x/log"
	"golang.org/x/mod/semver"

	"github.com/scibuild/scibuild/internal/policy"
	"github.com/scibuild/scibuild/pkgs/gnu"
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

// Node pairs a recipe with its resolved spec.
type Node struct {
	Recipe *recipe.Recipe
	Spec   *spec.Spec
}

// Result is a resolved dependency closure.
type Result struct {
	Root *Node

	// Order lists every node dependencies-first; the root is last.
	Order []*Node
}

type resolver struct {
	pol   *policy.Policy
	nodes map[string]*Node
	order []*Node
}

// Resolve expands a requirement string (e.g. "atdm-trilinos@13.0.1
// exec_space=openmp") and extra variant arguments into a full spec
// tree, honoring the platform policy for versions, variants, external
// packages and virtual providers. This is predicate-driven expansion,
// not a solver: the first resolution of a package wins and later
// requirements only narrow variants.
func Resolve(request string, variantArgs []string, pol *policy.Policy) (*Result, error) {
	req, err := spec.ParseRequest(request)
	if err != nil {
		return nil, err
	}

	r := &resolver{pol: pol, nodes: make(map[string]*Node)}
	root, err := r.resolve(req, variantArgs)
	if err != nil {
		return nil, err
	}
	return &Result{Root: root, Order: r.order}, nil
}

func (r *resolver) resolve(req spec.Request, extraArgs []string) (*Node, error) {
	name := r.provider(req.Name)

	if node, ok := r.nodes[name]; ok {
		// already resolved; requirements from later edges only narrow
		req.Apply(node.Spec)
		if req.Range != "" && !req.Matches(node.Spec) {
			return nil, fmt.Errorf("resolve: %s already resolved to %s, which does not satisfy @%s",
				name, node.Spec, req.Range)
		}
		return node, nil
	}

	rec, ok := recipe.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("resolve: no recipe for %s", name)
	}

	pkgPol, _ := r.pol.Package(name)

	version, err := pickVersion(rec, req.Range, pkgPol.Version)
	if err != nil {
		return nil, err
	}

	s := &spec.Spec{
		Name:       name,
		Version:    version,
		LibNames:   rec.LibNames,
		Components: rec.Components,
	}
	s.Compiler = spec.Compiler{
		Name:    r.pol.Compiler.Name,
		Version: r.pol.Compiler.Version,
		CC:      r.pol.Compiler.CC,
		CXX:     r.pol.Compiler.CXX,
		FC:      r.pol.Compiler.FC,
		Modules: r.pol.Compiler.Modules,
	}

	// variant defaults, then platform policy, then the request
	for _, v := range rec.Variants {
		s.SetVariant(v.Name, v.Default)
	}
	for k, v := range pkgPol.Variants {
		if err := rec.ValidateVariant(k, v); err != nil {
			return nil, err
		}
		s.SetVariant(k, v)
	}
	req.Apply(s)
	if err := recipe.ApplyVariantArgs(rec, s, extraArgs); err != nil {
		return nil, err
	}

	if pkgPol.External {
		s.External = true
		s.ExternalModule = pkgPol.Module
	}

	node := &Node{Recipe: rec, Spec: s}
	r.nodes[name] = node

	for _, d := range rec.Dependencies {
		if d.When != "" && !s.Satisfies(d.When) {
			continue
		}
		depReq, err := spec.ParseRequest(d.Spec)
		if err != nil {
			return nil, fmt.Errorf("resolve: recipe %s: %w", name, err)
		}
		child, err := r.resolve(depReq, nil)
		if err != nil {
			return nil, err
		}
		s.AddDep(child.Spec)

		if r.isProviderOf("mpi", child.Spec.Name) {
			r.attachMPI(s, child.Spec)
		}
	}

	r.order = append(r.order, node)
	return node, nil
}

// provider maps a virtual package name to its concrete provider.
func (r *resolver) provider(name string) string {
	if concrete, ok := r.pol.Provider(name); ok {
		log.Debugf("resolve: virtual %s provided by %s", name, concrete)
		return concrete
	}
	return name
}

func (r *resolver) isProviderOf(virtual, name string) bool {
	concrete, ok := r.pol.Provider(virtual)
	return ok && concrete == name
}

// attachMPI records the MPI launch configuration on a dependent spec.
func (r *resolver) attachMPI(s, mpi *spec.Spec) {
	pkgPol, _ := r.pol.Package(mpi.Name)
	launcher := pkgPol.Launcher
	if launcher == "" {
		launcher = "mpiexec"
	}
	numProcs := pkgPol.NumProcsFlag
	if numProcs == "" {
		numProcs = "-n"
	}
	s.MPIInfo = &spec.MPI{
		Name:         mpi.Name,
		Version:      mpi.Version,
		Exec:         launcher,
		NumProcsFlag: numProcs,
	}
}

// pickVersion selects the version to build: the highest declared
// release satisfying the requested range, the policy pin, or the
// recipe default.
func pickVersion(rec *recipe.Recipe, rng, pinned string) (string, error) {
	if rng == "" {
		if pinned != "" {
			if _, ok := rec.FindVersion(pinned); !ok {
				return "", fmt.Errorf("resolve: policy pins %s@%s but the recipe does not declare it", rec.Name, pinned)
			}
			return pinned, nil
		}
		version := rec.DefaultVersion()
		if version == "" {
			return "", fmt.Errorf("resolve: recipe %s declares no versions", rec.Name)
		}
		return version, nil
	}

	best := ""
	for _, v := range rec.Versions {
		if v.Branch != "" && v.Version != rng {
			continue
		}
		probe := &spec.Spec{Name: rec.Name, Version: v.Version}
		if !probe.Satisfies("@" + rng) {
			continue
		}
		if best == "" || compareVersions(v.Version, best) > 0 {
			best = v.Version
		}
	}
	if best == "" {
		return "", fmt.Errorf("resolve: no version of %s satisfies @%s", rec.Name, rng)
	}
	return best, nil
}

// compareVersions orders two version strings. Semver-shaped versions
// use semver precedence; everything else falls back to GNU version
// ordering, which handles four-component and lettered releases.
func compareVersions(a, b string) int {
	if semver.IsValid("v"+a) && semver.IsValid("v"+b) {
		return semver.Compare("v"+a, "v"+b)
	}
	return gnu.Compare(a, b)
}
