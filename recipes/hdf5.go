package recipes

import (
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "hdf5",
		Homepage: "https://portal.hdfgroup.org",
		URL:      "https://support.hdfgroup.org/ftp/HDF5/releases/hdf5-1.10/hdf5-{version}/src/hdf5-{version}.tar.gz",
		HasCode:  true,
		Versions: []recipe.Version{
			{Version: "1.10.7", SHA256: "7a1a0a54371275ce2dfc5cd093775bb025c365846512961e7e5ceaecb437ef15"},
		},
		Variants: []recipe.Variant{
			{Name: "hl", Default: "on", Description: "Build the high-level library"},
			{Name: "fortran", Default: "on", Description: "Build the Fortran interface"},
			{Name: "cxx", Default: "off", Description: "Build the C++ interface"},
			{Name: "mpi", Default: "on", Description: "Enable parallel HDF5"},
			{Name: "shared", Default: "on", Description: "Build shared libraries"},
			{Name: "threadsafe", Default: "off"},
			{Name: "build_type", Default: "release", Values: []string{"release", "debug", "relwithdebinfo"}},
		},
		Dependencies: []recipe.Dependency{
			{Spec: "zlib@1.2.5:", Type: []string{"build", "link"}},
			{Spec: "mpi", Type: []string{"build", "link", "run"}, When: "+mpi"},
		},
		Conflicts: []recipe.Conflict{
			{Spec: "+threadsafe", When: "+fortran",
				Msg: "the threadsafe library cannot be built with the Fortran interface"},
		},
		LibNames: []string{"hdf5"},
		Components: map[string][]string{
			"hl":      {"hdf5_hl", "hdf5"},
			"fortran": {"hdf5_fortran", "hdf5"},
			"cxx":     {"hdf5_cpp", "hdf5"},
		},
		BuildSystem: "cmake",
		CMakeArgs: func(s *spec.Spec) ([]string, error) {
			return []string{
				recipe.DefineBool("BUILD_SHARED_LIBS", s.VariantEnabled("shared")),
				recipe.DefineBool("HDF5_BUILD_HL_LIB", s.VariantEnabled("hl")),
				recipe.DefineBool("HDF5_BUILD_FORTRAN", s.VariantEnabled("fortran")),
				recipe.DefineBool("HDF5_BUILD_CPP_LIB", s.VariantEnabled("cxx")),
				recipe.DefineBool("HDF5_ENABLE_PARALLEL", s.VariantEnabled("mpi")),
				recipe.DefineBool("HDF5_ENABLE_THREADSAFE", s.VariantEnabled("threadsafe")),
				recipe.Define("HDF5_ENABLE_Z_LIB_SUPPORT", "ON"),
			}, nil
		},
	})
}
