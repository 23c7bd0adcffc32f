package recipes

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/scibuild/scibuild/internal/envgen"
	"github.com/scibuild/scibuild/internal/tpl"
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

// platformName is the logical system name builds report under. CI
// results post against it even when the build ran on a compute node.
const platformName = "redwood"

// trilinosTestMaxNumProcs caps the MPI procs a single test may request.
const trilinosTestMaxNumProcs = 16

// coreTPLs maps package names to the variable-name stems the Trilinos
// configuration reads (<STEM>_ROOT, ATDM_CONFIG_<STEM>_LIBS, ...).
// Order is the order the generated script declares them in.
var coreTPLs = []struct{ pkg, env string }{
	{"hdf5", "HDF5"},
	{"netcdf-c", "NETCDF"},
	{"parallel-netcdf", "PNETCDF"},
	{"boost", "BOOST"},
	{"cgns", "CGNS"},
	{"metis", "METIS"},
	{"parmetis", "PARMETIS"},
	{"superlu-dist", "SUPERLUDIST"},
	{"blas", "BLAS"},
	{"lapack", "LAPACK"},
}

func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "atdm-trilinos",
		Homepage: "https://trilinos.github.io",
		Git:      "https://github.com/trilinos/Trilinos.git",
		HasCode:  true,
		URLForVersion: func(version string) string {
			return "https://github.com/trilinos/Trilinos/archive/trilinos-release-" +
				strings.ReplaceAll(version, ".", "-") + ".tar.gz"
		},
		Versions: []recipe.Version{
			{Version: "develop", Branch: "develop", Preferred: true},
			{Version: "13.0.1", SHA256: "0bce7066c27e83085bc189bf524e535e5225636c9ee4b16291a38849d6c2216d"},
		},
		Patches: []recipe.Patch{
			// piro include test fix, not yet in a release
			{URL: "https://github.com/jjellio/Trilinos/commit/a82a80df2ec982b3073a03b257fcc3688e4e0542.patch",
				SHA256: "d6d1d2f6e9f4a3e2a7a30bb4b718499633ddfc20992069e3fb0b03e70a45bee4"},
			// build stats support
			{URL: "https://github.com/trilinos/Trilinos/pull/8638.patch",
				SHA256: "0f845ed22b262a98d216954d898c8ffdaad79fbace819f9b50f5b15a177c15a1"},
		},
		Variants: []recipe.Variant{
			{Name: "shared", Default: "off", Description: "Build shared libraries"},
			{Name: "tpls_shared", Default: "off", Description: "Use shared libraries for TPLs"},
			{Name: "build_for", Default: "all", Multi: true,
				Values: []string{"all", "sparc", "empire", "none"},
				Description: "Build a preset for a given app. 'all' enables every package, " +
					"'sparc'/'empire' use the app enables files, 'none' leaves enables to extra_cmake."},
			{Name: "tests", Default: "on", Description: "Enable tests and examples"},
			{Name: "package_enables", Default: "none", Multi: true,
				Values: []string{"secondary", "optional", "none"},
				Description: "Level of package dependencies to enable beyond primary tested code: " +
					"'secondary' enables secondary tested code, 'optional' enables optional packages."},
			{Name: "extra_cmake", Default: "none", Free: true,
				Description: "Additional CMake variables or flags, separated by pipes"},
			{Name: "complex", Default: "off", Description: "Enable complex scalars"},
			{Name: "ci_hostname", Default: platformName, Free: true,
				Description: "Hostname CI results are posted as"},
			{Name: "exec_space", Default: "serial",
				Values:      []string{"serial", "openmp", "cuda", "hip"},
				Description: "The execution space to build"},
			{Name: "accel_target", Default: "none",
				Values: []string{"none", "mi60", "mi100"}},
			{Name: "host_lapack", Default: "libsci",
				Values:      []string{"libsci", "netlib"},
				Description: "The host blas/lapack to use"},
			{Name: "mpi_impl", Default: "mpich",
				Values:      []string{"mpich", "openmpi"},
				Description: "The MPI implementation to use"},
			{Name: "build_type", Default: "release",
				Values: []string{"release", "debug", "relwithdebinfo"}},
		},
		Dependencies: []recipe.Dependency{
			{Spec: "mpi", Type: []string{"build", "link", "run"}},
			{Spec: "blas", Type: []string{"build", "link", "run"}},
			{Spec: "lapack", Type: []string{"build", "link", "run"}},
			{Spec: "hdf5@1.10.7~cxx~threadsafe+fortran+hl+mpi", Type: []string{"build", "link", "run"}},
			{Spec: "netcdf-c~jna~dap+mpi+parallel-netcdf", Type: []string{"build", "link", "run"}},
			{Spec: "parallel-netcdf~cxx~burstbuffer+fortran", Type: []string{"build", "link", "run"}},
			{Spec: "cray-pe-targets", When: "exec_space=hip"},

			// +tpls_shared pushes shared linkage onto every TPL
			{Spec: "hdf5+shared", When: "+tpls_shared"},
			{Spec: "hdf5~shared", When: "~tpls_shared"},
			{Spec: "netcdf-c+shared", When: "+tpls_shared"},
			{Spec: "netcdf-c~shared", When: "~tpls_shared"},
			{Spec: "parallel-netcdf+shared", When: "+tpls_shared"},
			{Spec: "parallel-netcdf~shared", When: "~tpls_shared"},
			{Spec: "zlib+shared", When: "+tpls_shared"},
			{Spec: "zlib~shared", When: "~tpls_shared"},
		},
		Conflicts: []recipe.Conflict{
			{Spec: "accel_target=none", When: "exec_space=hip",
				Msg: "hip builds need an accelerator target"},
			{Spec: "accel_target=none", When: "exec_space=cuda",
				Msg: "cuda builds need an accelerator target"},
		},
		BuildSystem:  "cmake",
		Generator:    "Ninja",
		KeepGoing:    true,
		RunTests:     true,
		CMakeArgs:    atdmCMakeArgs,
		PreConfigure: atdmPreConfigure,
	})
}

func atdmCMakeArgs(s *spec.Spec) ([]string, error) {
	var options []string

	optFile := "cmake/std/atdm/ATDMDevEnv.cmake"
	if s.VariantContains("build_for", "empire") {
		optFile += ";cmake/std/atdm/apps/empire/EMPIRETrilinosEnables.cmake"
	}
	if s.VariantContains("build_for", "sparc") {
		optFile += ";cmake/std/atdm/apps/sparc/SPARCTrilinosPackagesEnables.cmake"
	}
	if s.VariantContains("build_for", "all") {
		options = append(options, recipe.DefineBool("Trilinos_ENABLE_ALL_PACKAGES", true))
	}

	if s.VariantEnabled("tests") {
		options = append(options,
			recipe.DefineBool("Trilinos_ENABLE_TESTS", true),
			recipe.DefineBool("Trilinos_ENABLE_EXAMPLES", true),
		)
	}

	if s.VariantContains("package_enables", "secondary") {
		options = append(options, recipe.DefineBool("Trilinos_ENABLE_SECONDARY_TESTED_CODE", true))
	}
	if s.VariantContains("package_enables", "optional") {
		options = append(options, recipe.DefineBool("Trilinos_ENABLE_ALL_OPTIONAL_PACKAGES", true))
	}

	// extra cmake parameters pass through verbatim
	for _, extra := range strings.Split(s.Variant("extra_cmake"), "|") {
		if extra != "" && !strings.EqualFold(extra, "none") {
			options = append(options, extra)
		}
	}

	if !s.VariantEnabled("tpls_shared") {
		// prefer static archives when resolving TPLs
		options = append(options, recipe.Define("CMAKE_FIND_LIBRARY_SUFFIXES", ".a;.so"))
	}

	options = append(options,
		recipe.Define("Trilinos_WARNINGS_AS_ERRORS_FLAGS", ""),
		recipe.DefineBool("Trilinos_ALLOW_NO_PACKAGES", true),
		recipe.DefineBool("Trilinos_DISABLE_ENABLED_FORWARD_DEP_PACKAGES", true),
		recipe.Define("Trilinos_DEPS_XML_OUTPUT_FILE", ""),
		recipe.Define("Trilinos_EXTRAREPOS_FILE", ""),
		recipe.DefineBool("Trilinos_IGNORE_MISSING_EXTRA_REPOSITORIES", true),
		recipe.Define("Trilinos_ENABLE_KNOWN_EXTERNAL_REPOS_TYPE", "None"),
		recipe.DefineBool("CMAKE_VERBOSE_MAKEFILE", false),
		recipe.Define("CMAKE_CXX_LINK_FLAGS", "-fuse-ld=lld -Wl,--threads=8"),
		recipe.Define("CMAKE_C_LINK_FLAGS", "-fuse-ld=lld -Wl,--threads=8"),
		recipe.DefineBool("Trilinos_TRACE_ADD_TEST", true),
		recipe.DefineBool("Trilinos_ENABLE_CONFIGURE_TIMING", true),
		recipe.Define("Trilinos_HOSTNAME", s.Variant("ci_hostname")),
		recipe.Define("Trilinos_CONFIGURE_OPTIONS_FILE", optFile),
		recipe.DefineBool("Trilinos_ENABLE_BUILD_STATS", false),
		recipe.Define("MPI_EXEC_MAX_NUMPROCS", strconv.Itoa(trilinosTestMaxNumProcs)),
		recipe.Define("DART_TESTING_TIMEOUT", "200"),
	)
	return options, nil
}

// atdmPreConfigure generates the ATDM environment scripts, copies them
// into the Trilinos source tree and imports the resulting environment
// so the native configuration can read it.
func atdmPreConfigure(ctx *recipe.BuildContext) error {
	s := ctx.Spec

	shared := false
	wrapGroups := true
	if s.VariantEnabled("tpls_shared") {
		shared = true
		wrapGroups = false
	}

	collector := tpl.NewCollector(s, tpl.Config{
		Queries: map[string]string{
			"hdf5":  "hdf5:hl,fortran",
			"boost": "boost:system,program_options",
		},
		Overrides: map[string][]string{
			"boost": {"boost_system", "boost_program_options"},
		},
		// the Cray scientific library only works correctly in shared form
		StaticDenylist: []string{"sci_cray"},
		Shared:         shared,
		WrapGroups:     wrapGroups,
	})

	names := make([]string, 0, len(coreTPLs))
	for _, t := range coreTPLs {
		names = append(names, t.pkg)
	}
	gathered := collector.Gather(names)

	var tpls []envgen.TPL
	for _, t := range coreTPLs {
		dep, ok := s.Dep(t.pkg)
		if !ok {
			continue
		}
		tpls = append(tpls, envgen.TPL{
			EnvName:     t.env,
			Prefix:      dep.Prefix,
			IncludeDirs: gathered[t.pkg].IncludeDirs,
			Libs:        gathered[t.pkg].Libs,
		})
	}

	arch, err := envgen.KokkosArch(os.Getenv, "zen", s.Variant("accel_target"))
	if err != nil {
		return err
	}

	// hip builds mix toolchains: the MPI C++ wrapper is replaced and its
	// inner compiler routed through hipcc
	var overrideMPICXX, overrideInner string
	if s.Variant("exec_space") == "hip" {
		if path, err := exec.LookPath("mpicxx"); err == nil {
			overrideMPICXX = path
		}
		if path, err := exec.LookPath("hipcc"); err == nil {
			overrideInner = path
		}
	}

	binutilsRoot := os.Getenv("CRAY_BINUTILS_ROOT")
	if binutilsRoot == "" {
		binutilsRoot = os.Getenv("BINUTILS_ROOT")
	}

	cfg := &envgen.Config{
		Spec:                s,
		SystemName:          platformName,
		SystemDir:           filepath.Join(ctx.StageDir, "atdm-config"),
		Hostname:            s.Variant("ci_hostname"),
		InstallDir:          ctx.SourceDir,
		KokkosArch:          arch,
		TPLs:                tpls,
		BinutilsRoot:        binutilsRoot,
		Modules:             append(s.Compiler.Modules, externalModules(s)...),
		HIPRoot:             "/opt/rocm",
		OverrideMPICXX:      overrideMPICXX,
		OverrideMPICXXInner: overrideInner,
		UseNinja:            true,
		CTestParallelLevel:  4,
		BuildCount:          60,
	}
	if err := cfg.WriteScripts(); err != nil {
		return err
	}

	// the ATDM configuration expects its custom config dir inside the
	// source tree
	dest := filepath.Join(ctx.SourceDir, "cmake", "std", "atdm", filepath.Base(cfg.SystemDir))
	if err := os.CopyFS(dest, os.DirFS(cfg.SystemDir)); err != nil {
		return err
	}
	log.Infof("atdm-trilinos: environment scripts staged in %s", dest)

	return envgen.SourceAndImport(filepath.Join(cfg.SystemDir, envgen.ScriptName))
}

// externalModules collects the module names of every externally
// provided dependency, deduplicated in first-seen order.
func externalModules(s *spec.Spec) []string {
	var modules []string
	seen := make(map[string]struct{})
	var walk func(*spec.Spec)
	walk = func(cur *spec.Spec) {
		for _, dep := range cur.Deps() {
			if dep.External && dep.ExternalModule != "" {
				if _, ok := seen[dep.ExternalModule]; !ok {
					seen[dep.ExternalModule] = struct{}{}
					modules = append(modules, dep.ExternalModule)
				}
			}
			walk(dep)
		}
	}
	walk(s)
	return modules
}
