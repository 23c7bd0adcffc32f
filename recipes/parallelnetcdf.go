package recipes

import (
	"os/exec"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/scibuild/scibuild/pkgs/gnu"
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "parallel-netcdf",
		Homepage: "https://parallel-netcdf.github.io/",
		Git:      "https://github.com/Parallel-NetCDF/PnetCDF",
		HasCode:  true,
		URLForVersion: func(version string) string {
			// releases moved to the pnetcdf- prefix with 1.11.0
			if gnu.Compare(version, "1.11.0") >= 0 {
				return "https://parallel-netcdf.github.io/Release/pnetcdf-" + version + ".tar.gz"
			}
			return "https://parallel-netcdf.github.io/Release/parallel-netcdf-" + version + ".tar.gz"
		},
		Versions: []recipe.Version{
			{Version: "master", Branch: "master"},
			{Version: "1.12.1", SHA256: "56f5afaa0ddc256791c405719b6436a83b92dcd5be37fe860dea103aee8250a2"},
			{Version: "1.11.2", SHA256: "d2c18601b364c35b5acb0a0b46cd6e14cae456e0eb854e5c789cf65f3cd6a2a7"},
			{Version: "1.10.0", SHA256: "ed189228b933cfeac3b7b4f8944eb00e4ff2b72cf143365b1a77890980663a09"},
		},
		Variants: []recipe.Variant{
			{Name: "cxx", Default: "on", Description: "Build the C++ interface"},
			{Name: "fortran", Default: "on", Description: "Build the Fortran interface"},
			{Name: "pic", Default: "on", Description: "Produce position-independent code"},
			{Name: "shared", Default: "on", Description: "Build shared libraries"},
			{Name: "burstbuffer", Default: "off", Description: "Enable the burst buffer feature"},
		},
		Dependencies: []recipe.Dependency{
			{Spec: "mpi", Type: []string{"build", "link", "run"}},
		},
		Conflicts: []recipe.Conflict{
			{Spec: "+shared", When: "@:1.8",
				Msg: "shared library support arrived in 1.9.0"},
			{Spec: "+burstbuffer", When: "@:1.10",
				Msg: "the burst buffer feature arrived in 1.11.0"},
		},
		LibNames:      []string{"pnetcdf"},
		BuildSystem:   "autotools",
		ConfigureArgs: pnetcdfConfigureArgs,
	})
}

func pnetcdfConfigureArgs(s *spec.Spec) ([]string, error) {
	var args []string

	if mpi, ok := s.Dep("mpi"); ok && mpi.Prefix != "" {
		args = append(args, "--with-mpi="+mpi.Prefix)
	}

	// the platform compiler wrappers already speak MPI
	args = append(args,
		"SEQ_CC="+s.Compiler.CC,
		"MPICC="+s.Compiler.CC,
		"MPICXX="+s.Compiler.CXX,
		"MPIF77="+s.Compiler.FC,
		"MPIF90="+s.Compiler.FC,
	)

	// configure wants to know how to launch MPI test programs. Probe
	// for a launcher; the spec's MPI provider gets first shot, then the
	// common launchers in priority order.
	if launcher, flag, ok := probeMPILauncher(s); ok {
		args = append(args,
			"TESTMPIRUN="+launcher+" "+flag+" NP",
			"TESTSEQRUN="+launcher+" "+flag+" 1",
		)
	}

	args = append(args,
		recipe.EnableOrDisable(s, "cxx"),
		recipe.EnableOrDisable(s, "fortran"),
	)

	if s.VariantEnabled("pic") {
		args = append(args,
			"CFLAGS=-fPIC",
			"CXXFLAGS=-fPIC",
			"FCFLAGS=-fPIC",
			"FFLAGS=-fPIC",
		)
	}

	if s.Satisfies("@1.8:") {
		args = append(args, "--enable-relax-coord-bound")
	}
	if s.Satisfies("@1.9:") {
		args = append(args,
			recipe.EnableOrDisable(s, "shared"),
			"--enable-static",
			"--disable-silent-rules")
	}
	if s.VariantEnabled("burstbuffer") {
		args = append(args, "--enable-burst-buffering")
	}
	return args, nil
}

// probeMPILauncher finds an MPI launch command on PATH and returns it
// with its process-count flag.
func probeMPILauncher(s *spec.Spec) (launcher, numProcsFlag string, ok bool) {
	candidates := [][2]string{
		{"mpiexec", "-n"},
		{"mpirun", "-np"},
		{"srun", "-n"},
		{"aprun", "-n"},
		{"jsrun", "-p"},
	}
	if s.MPIInfo != nil && s.MPIInfo.Exec != "" {
		candidates = append([][2]string{{s.MPIInfo.Exec, s.MPIInfo.NumProcsFlag}}, candidates...)
	}
	for _, c := range candidates {
		name := strings.Fields(c[0])[0]
		path, err := exec.LookPath(name)
		if err != nil {
			continue
		}
		log.Debugf("parallel-netcdf: guessing MPI launcher %s %s", path, c[1])
		return path, c[1], true
	}
	return "", "", false
}
