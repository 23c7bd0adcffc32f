package envgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"
	"mvdan.cc/sh/v3/syntax"

	"github.com/scibuild/scibuild/pkgs/spec"
)

// TPL carries everything the generated script needs to describe one
// third-party library: the variable-name stem, the install prefix and
// the collected include directories and link libraries.
type TPL struct {
	EnvName     string // e.g. "HDF5", "NETCDF"
	Prefix      string
	IncludeDirs []string
	Libs        []string
}

// Config describes one environment script to generate. The script
// mimics the "source, then configure, then build" workflow some legacy
// pipelines expect: every variable the native build reads is exported
// by sourcing the generated file.
type Config struct {
	Spec *spec.Spec

	SystemName string // logical system name baked into the script
	SystemDir  string // directory the scripts are written to
	Hostname   string
	InstallDir string

	KokkosArch   string
	TPLs         []TPL
	BinutilsRoot string
	Modules      []string // modules the script re-loads

	HIPRoot string // default HIP_ROOT when exec_space=hip

	// Mixed-toolchain builds replace the MPI C++ wrapper and route its
	// inner compiler through hipcc. Empty values leave the wrappers alone.
	OverrideMPICXX      string
	OverrideMPICXXInner string

	UseNinja           bool
	CTestParallelLevel int
	BuildCount         int
}

// ScriptName is the file sourced by the legacy workflow.
const ScriptName = "environment.sh"

// CustomBuildsName declares the compiler configuration name.
const CustomBuildsName = "custom_builds.sh"

// trueNameVersion reports the real provider name and version of a
// dependency. A package supplied by an external module hides its real
// identity in the module name (e.g. "cray-mpich/8.1.4" behind an
// "mpich" spec), so the module name wins when it mentions the package.
func trueNameVersion(dep *spec.Spec) (string, string) {
	if dep.External && dep.ExternalModule != "" {
		name, version, ok := strings.Cut(dep.ExternalModule, "/")
		if ok && strings.Contains(name, dep.Name) {
			return strings.ReplaceAll(name, "_", "-"), version
		}
	}
	return dep.Name, dep.Version
}

// CompilerConfigName derives the compiler configuration name recorded
// in custom_builds.sh: compiler name and version, the execution space
// when it changes the toolchain, and the MPI provider name and version.
func (c *Config) CompilerConfigName() string {
	s := c.Spec
	name := s.Compiler.Name + "-" + s.Compiler.Version

	switch s.Variant("exec_space") {
	case "openmp":
		name += "_openmp"
	case "hip":
		if rocm, ok := s.Dep("rocm"); ok {
			n, v := trueNameVersion(rocm)
			name += "_" + n + "-" + v
		}
	}

	if s.MPIInfo != nil {
		mpiName, mpiVersion := s.MPIInfo.Name, s.MPIInfo.Version
		if dep, ok := s.Dep(mpiName); ok {
			mpiName, mpiVersion = trueNameVersion(dep)
		}
		name += "_" + mpiName + "-" + mpiVersion
	}
	return name
}

// BuildName derives the job name used for dashboards and staging
// directories.
func (c *Config) BuildName() string {
	s := c.Spec
	name := fmt.Sprintf("%s-%s-%s-%s",
		c.SystemName,
		c.CompilerConfigName(),
		strings.ToLower(s.Variant("build_type")),
		s.Variant("exec_space"))
	if s.VariantEnabled("complex") {
		name += "-complex"
	}
	if s.VariantEnabled("shared") {
		name += "-shared"
	}
	return name
}

type scriptWriter struct {
	b   strings.Builder
	err error
}

func (w *scriptWriter) raw(line string) {
	w.b.WriteString(line)
	w.b.WriteByte('\n')
}

func (w *scriptWriter) export(name, value string) {
	if w.err != nil {
		return
	}
	quoted, err := syntax.Quote(value, syntax.LangBash)
	if err != nil {
		w.err = fmt.Errorf("envgen: quoting %s: %w", name, err)
		return
	}
	w.raw("export " + name + "=" + quoted)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

// Render produces the environment.sh content.
func (c *Config) Render() (string, error) {
	s := c.Spec
	execSpace := s.Variant("exec_space")

	w := &scriptWriter{}
	w.raw("# Auto-generated. Mimics the 'source -> configure -> build'")
	w.raw("# workflow used by some CI pipelines. Do not edit.")
	w.raw("")

	if len(c.Modules) > 0 {
		w.raw("module purge")
		for _, m := range c.Modules {
			quoted, err := syntax.Quote(m, syntax.LangBash)
			if err != nil {
				return "", fmt.Errorf("envgen: quoting module %s: %w", m, err)
			}
			w.raw("module load " + quoted)
		}
		w.raw("")
	}

	for _, tpl := range c.TPLs {
		root := tpl.EnvName + "_ROOT"
		quoted, err := syntax.Quote(tpl.Prefix, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("envgen: quoting %s: %w", root, err)
		}
		// respect a pre-set <TPL>_ROOT from the surrounding environment
		w.raw(": \"${" + root + ":=" + quoted + "}\"")
		w.raw("export " + root)
		// cmake wants semicolon-delimited lists
		w.export("ATDM_CONFIG_"+tpl.EnvName+"_INCLUDE_DIRS", strings.Join(tpl.IncludeDirs, ";"))
		w.export("ATDM_CONFIG_"+tpl.EnvName+"_LIBS", strings.Join(tpl.Libs, ";"))
		w.raw("")
	}

	if c.BinutilsRoot != "" {
		w.export("BINUTILS_ROOT", c.BinutilsRoot)
		w.raw(`export ATDM_CONFIG_BINUTILS_LIBS="-L${BINUTILS_ROOT}/lib;-lbfd"`)
		w.raw("")
	}

	w.export("ATDM_CONFIG_ENABLE_SPARC_SETTINGS", "ON")
	w.export("ATDM_CONFIG_USE_SPARC_TPL_FIND_SETTINGS", "OFF")
	w.export("ATDM_CONFIG_KNOWN_HOSTNAME", c.Hostname)
	w.export("ATDM_CONFIG_CDASH_HOSTNAME", c.Hostname)
	w.export("ATDM_CONFIG_REAL_HOSTNAME", c.Hostname)
	w.export("ATDM_CONFIG_USE_NINJA", onOff(c.UseNinja))
	w.export("ATDM_CONFIG_KOKKOS_ARCH", c.KokkosArch)
	w.export("ATDM_CONFIG_CUDA_RDC", "OFF")
	w.export("ATDM_CONFIG_USE_HIP", onOff(execSpace == "hip"))
	w.export("ATDM_CONFIG_USE_CUDA", onOff(execSpace == "cuda"))
	w.export("ATDM_CONFIG_USE_OPENMP", onOff(execSpace == "openmp"))
	w.export("ATDM_CONFIG_USE_PTHREADS", "OFF")
	w.export("ATDM_CONFIG_CTEST_PARALLEL_LEVEL", fmt.Sprint(c.CTestParallelLevel))
	w.export("ATDM_CONFIG_BUILD_COUNT", fmt.Sprint(c.BuildCount))
	w.export("ATDM_CONFIG_FPIC", "OFF")
	w.export("ATDM_CONFIG_OVERRIDE_MPICXX", c.OverrideMPICXX)
	w.export("ATDM_CONFIG_OVERRIDE_MPICXX_INNER_COMPILER", c.OverrideMPICXXInner)
	w.export("ATDM_CONFIG_Kokkos_ENABLE_SERIAL", "ON")

	if execSpace == "hip" {
		quoted, err := syntax.Quote(c.HIPRoot, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("envgen: quoting HIP_ROOT: %w", err)
		}
		w.raw(": \"${HIP_ROOT:=" + quoted + "}\"")
		w.raw("export HIP_ROOT")
		w.raw(`export ATDM_CONFIG_HIP_ROOT="$HIP_ROOT"`)
	}

	w.export("MPICC", s.Compiler.CC)
	w.export("MPICXX", s.Compiler.CXX)
	w.export("MPIF90", s.Compiler.FC)

	// mixed-toolchain override: swap the C++ wrapper and push the real
	// device compiler into the wrapper's inner-compiler hooks
	w.raw(`if [ "$ATDM_CONFIG_OVERRIDE_MPICXX" != "" ]; then`)
	w.raw(`  export MPICXX="$ATDM_CONFIG_OVERRIDE_MPICXX"`)
	w.raw(`fi`)
	w.raw(`if [ "$ATDM_CONFIG_OVERRIDE_MPICXX_INNER_COMPILER" != "" ]; then`)
	w.raw(`  export OMPI_CXX="$ATDM_CONFIG_OVERRIDE_MPICXX_INNER_COMPILER"`)
	w.raw(`  export MPICH_CXX="$ATDM_CONFIG_OVERRIDE_MPICXX_INNER_COMPILER"`)
	w.raw(`fi`)

	if s.MPIInfo != nil {
		w.export("ATDM_CONFIG_MPI_EXEC", s.MPIInfo.Exec)
		w.export("ATDM_CONFIG_MPI_POST_FLAGS", s.MPIInfo.PostFlags)
		w.export("ATDM_CONFIG_MPI_EXEC_NUMPROCS_FLAG", s.MPIInfo.NumProcsFlag)
	}
	w.export("ATDM_CONFIG_USE_MPI", onOff(s.MPIInfo != nil))

	w.export("ATDM_CONFIG_KNOWN_SYSTEM_NAME", c.SystemName)
	w.export("ATDM_CONFIG_SYSTEM_NAME", c.SystemName)
	w.export("ATDM_CONFIG_GET_CUSTOM_SYSTEM_INFO_COMPLETED", "1")
	w.export("ATDM_CONFIG_BUILD_TYPE", strings.ToUpper(s.Variant("build_type")))
	w.export("ATDM_CONFIG_JOB_NAME", c.BuildName())
	w.export("ATDM_CONFIG_BUILD_NAME", c.BuildName())
	w.export("ATDM_CONFIG_PT_PACKAGES", "ON")
	w.export("ATDM_CONFIG_CUSTOM_COMPILER_SET", "1")
	w.export("ATDM_CONFIG_COMPILER", c.CompilerConfigName())
	w.export("ATDM_CONFIG_CUSTOM_CONFIG_DIR", c.SystemDir)
	w.export("ATDM_CONFIG_CUSTOM_CONFIG_DIR_ARG", c.SystemDir)
	w.export("ATDM_CONFIG_SYSTEM_DIR", c.SystemDir)
	w.export("ATDM_CONFIG_TRILINOS_DIR", c.InstallDir)
	w.export("ATDM_CONFIG_SCRIPT_DIR", c.InstallDir+"/cmake/std/atdm")
	w.export("ATDM_CONFIG_FINISHED_SET_BUILD_OPTIONS", "1")
	w.export("ATDM_CONFIG_NODE_TYPE", execSpace)
	w.export("ATDM_CONFIG_COMPLEX", onOff(s.VariantEnabled("complex")))
	w.export("ATDM_CONFIG_SHARED_LIBS", onOff(s.VariantEnabled("shared")))
	w.export("ATDM_CONFIG_ADDRESS_SANITIZER", "OFF")
	w.export("ATDM_CONFIG_COMPLETED_ENV_SETUP", "TRUE")

	if w.err != nil {
		return "", w.err
	}
	return w.b.String(), nil
}

// WriteScripts renders and writes environment.sh and custom_builds.sh
// under the configured system directory. Any write failure is returned
// unrecovered.
func (c *Config) WriteScripts() error {
	if err := os.MkdirAll(c.SystemDir, 0o755); err != nil {
		return err
	}

	content, err := c.Render()
	if err != nil {
		return err
	}
	envFile := filepath.Join(c.SystemDir, ScriptName)
	log.Infof("envgen: writing %s", envFile)
	if err := os.WriteFile(envFile, []byte(content), 0o644); err != nil {
		return err
	}

	name := c.CompilerConfigName()
	quoted, err := syntax.Quote(name, syntax.LangBash)
	if err != nil {
		return fmt.Errorf("envgen: quoting compiler name: %w", err)
	}
	log.Infof("envgen: compiler configuration name %s", name)
	custom := "export ATDM_CONFIG_COMPILER=" + quoted + "\n"
	return os.WriteFile(filepath.Join(c.SystemDir, CustomBuildsName), []byte(custom), 0o644)
}
