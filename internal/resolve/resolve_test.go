package resolve

import (
	"testing"

	"github.com/scibuild/scibuild/internal/policy"
	"github.com/scibuild/scibuild/recipe"
)

func init() {
	recipe.Register(&recipe.Recipe{
		Name:    "zlib-fixture",
		HasCode: true,
		Versions: []recipe.Version{
			{Version: "1.2.11", SHA256: "aa"},
			{Version: "1.2.13", SHA256: "bb"},
			{Version: "1.3.1", SHA256: "cc"},
		},
		Variants: []recipe.Variant{
			{Name: "shared", Default: "on"},
		},
		BuildSystem: "cmake",
	})
	recipe.Register(&recipe.Recipe{
		Name:    "hdf5-fixture",
		HasCode: true,
		Versions: []recipe.Version{
			{Version: "1.10.7", SHA256: "dd"},
		},
		Variants: []recipe.Variant{
			{Name: "hl", Default: "on"},
		},
		Dependencies: []recipe.Dependency{
			{Spec: "zlib-fixture@1.2:"},
		},
		LibNames:    []string{"hdf5"},
		Components:  map[string][]string{"hl": {"hdf5_hl", "hdf5"}},
		BuildSystem: "cmake",
	})
	recipe.Register(&recipe.Recipe{
		Name:    "mpich-fixture",
		HasCode: true,
		Versions: []recipe.Version{
			{Version: "8.1.4", SHA256: "ee"},
		},
	})
	recipe.Register(&recipe.Recipe{
		Name:    "app-fixture",
		HasCode: true,
		Versions: []recipe.Version{
			{Version: "13.0.1", SHA256: "ff"},
			{Version: "12.18.1", SHA256: "gg"},
		},
		Variants: []recipe.Variant{
			{Name: "io", Default: "on"},
			{Name: "exec_space", Default: "serial",
				Values: []string{"serial", "openmp", "cuda", "hip"}},
		},
		Dependencies: []recipe.Dependency{
			{Spec: "mpi"},
			{Spec: "hdf5-fixture+hl", When: "+io"},
			{Spec: "zlib-fixture"},
		},
		BuildSystem: "cmake",
	})
}

func testPolicy() *policy.Policy {
	return &policy.Policy{
		System: "magic",
		Compiler: policy.CompilerPolicy{
			Name:    "crayclang",
			Version: "11.0.3",
			CC:      "cc",
			CXX:     "CC",
			FC:      "ftn",
		},
		Virtuals: map[string][]string{
			"mpi": {"mpich-fixture"},
		},
		Packages: map[string]policy.PackagePolicy{
			"mpich-fixture": {
				External:     true,
				Module:       "cray-mpich/8.1.4",
				Launcher:     "srun",
				NumProcsFlag: "-p",
			},
			"zlib-fixture": {
				Variants: map[string]string{"shared": "off"},
			},
		},
	}
}

func TestResolveOrderIsDepsFirst(t *testing.T) {
	res, err := Resolve("app-fixture", nil, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	pos := make(map[string]int)
	for i, n := range res.Order {
		pos[n.Spec.Name] = i
	}
	if res.Order[len(res.Order)-1] != res.Root {
		t.Error("root is not last in the build order")
	}
	if pos["zlib-fixture"] > pos["hdf5-fixture"] {
		t.Error("zlib ordered after its dependent hdf5")
	}
	if pos["hdf5-fixture"] > pos["app-fixture"] {
		t.Error("hdf5 ordered after its dependent app")
	}
}

func TestResolveVirtualProvider(t *testing.T) {
	res, err := Resolve("app-fixture", nil, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	mpi, ok := res.Root.Spec.Dep("mpich-fixture")
	if !ok {
		t.Fatal("mpi provider missing from dependency tree")
	}
	if !mpi.External || mpi.ExternalModule != "cray-mpich/8.1.4" {
		t.Errorf("provider external = %v module = %q", mpi.External, mpi.ExternalModule)
	}

	info := res.Root.Spec.MPIInfo
	if info == nil {
		t.Fatal("MPIInfo not attached to the root spec")
	}
	if info.Exec != "srun" || info.NumProcsFlag != "-p" {
		t.Errorf("MPIInfo = %+v", info)
	}
}

func TestResolveVersionSelection(t *testing.T) {
	pol := testPolicy()

	// default picks the highest declared release
	res, err := Resolve("app-fixture", nil, pol)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := res.Root.Spec.Version; got != "13.0.1" {
		t.Errorf("default version = %q, want 13.0.1", got)
	}

	// a range narrows the choice
	res, err = Resolve("app-fixture@12", nil, pol)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := res.Root.Spec.Version; got != "12.18.1" {
		t.Errorf("ranged version = %q, want 12.18.1", got)
	}

	// the "zlib-fixture@1.2:" dependency edge still picks the highest
	zlib, ok := res.Root.Spec.Dep("zlib-fixture")
	if !ok {
		t.Fatal("zlib missing from dependency tree")
	}
	if zlib.Version != "1.3.1" {
		t.Errorf("zlib version = %q, want 1.3.1", zlib.Version)
	}

	if _, err := Resolve("app-fixture@99", nil, pol); err == nil {
		t.Error("unsatisfiable version range should fail")
	}
}

func TestResolveConditionalDependency(t *testing.T) {
	res, err := Resolve("app-fixture~io", nil, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := res.Root.Spec.Dep("hdf5-fixture"); ok {
		t.Error("~io should drop the hdf5 dependency")
	}
	if _, ok := res.Root.Spec.Dep("zlib-fixture"); !ok {
		t.Error("unconditional zlib dependency missing")
	}
}

func TestResolveVariantPrecedence(t *testing.T) {
	// the policy turns zlib shared off, overriding the recipe default
	res, err := Resolve("app-fixture", nil, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	zlib, _ := res.Root.Spec.Dep("zlib-fixture")
	if zlib.Variant("shared") != "off" {
		t.Errorf("policy variant not applied: shared = %q", zlib.Variant("shared"))
	}

	// a request on the root overrides the recipe default
	res, err = Resolve("app-fixture exec_space=openmp", nil, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := res.Root.Spec.Variant("exec_space"); got != "openmp" {
		t.Errorf("requested variant = %q, want openmp", got)
	}

	// command-line arguments override everything
	res, err = Resolve("app-fixture exec_space=openmp", []string{"exec_space=cuda", "~io"}, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got := res.Root.Spec.Variant("exec_space"); got != "cuda" {
		t.Errorf("argument variant = %q, want cuda", got)
	}
	if res.Root.Spec.Variant("io") != "off" {
		t.Error("~io argument not applied")
	}
}

func TestResolveVariantValidation(t *testing.T) {
	if _, err := Resolve("app-fixture", []string{"exec_space=sycl"}, testPolicy()); err == nil {
		t.Error("illegal variant value should fail")
	}
	if _, err := Resolve("app-fixture", []string{"+nonexistent"}, testPolicy()); err == nil {
		t.Error("unknown variant should fail")
	}
}

func TestResolveSharedDependencyOnce(t *testing.T) {
	res, err := Resolve("app-fixture", nil, testPolicy())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	seen := 0
	for _, n := range res.Order {
		if n.Spec.Name == "zlib-fixture" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("zlib resolved %d times, want 1", seen)
	}

	// app and hdf5 must share the same zlib spec
	direct, _ := res.Root.Spec.Dep("zlib-fixture")
	hdf5, _ := res.Root.Spec.Dep("hdf5-fixture")
	viaHDF5, _ := hdf5.Dep("zlib-fixture")
	if direct != viaHDF5 {
		t.Error("zlib spec differs between dependents")
	}
}

func TestResolveUnknownPackage(t *testing.T) {
	if _, err := Resolve("no-such-package", nil, testPolicy()); err == nil {
		t.Error("unknown package should fail")
	}
}
