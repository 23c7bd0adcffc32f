package recipes

import (
	"strings"

	"github.com/scibuild/scibuild/internal/tpl"
	"github.com/scibuild/scibuild/pkgs/gnu"
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "netcdf-c",
		Homepage: "http://www.unidata.ucar.edu/software/netcdf",
		Git:      "https://github.com/Unidata/netcdf-c.git",
		HasCode:  true,
		URLForVersion: func(version string) string {
			// the tarball was renamed from netcdf- to netcdf-c- in 4.6.2
			if gnu.Compare(version, "4.6.2") >= 0 {
				return "ftp://ftp.unidata.ucar.edu/pub/netcdf/netcdf-c-" + version + ".tar.gz"
			}
			return "ftp://ftp.unidata.ucar.edu/pub/netcdf/netcdf-" + version + ".tar.gz"
		},
		Versions: []recipe.Version{
			{Version: "master", Branch: "master"},
			{Version: "4.7.4", SHA256: "0e476f00aeed95af8771ff2727b7a15b2de353fb7bb3074a0d340b55c2bd4ea8"},
			{Version: "4.7.3", SHA256: "8e8c9f4ee15531debcf83788594744bd6553b8489c06a43485a15c93b4e0448b"},
			{Version: "4.7.2", SHA256: "b751cc1f314ac8357df2e0a1bacf35a624df26fe90981d3ad3fa85a5bbd8989a"},
			{Version: "4.6.1", SHA256: "89c7957458740b763ae828c345240b8a1d29c2c1fed0f065f99b73181b0b2642"},
			{Version: "4.5.0", SHA256: "cbe70049cf1643c4ad7453f86510811436c9580cb7a1684ada2f32b95b00ca79"},
		},
		Patches: []recipe.Patch{
			// header fixes that never made a 4.7.2 point release
			{URL: "https://github.com/Unidata/netcdf-c/pull/1505.patch",
				SHA256: "f52db13c61b9c19aafe03c2a865163b540e9f6dee36e3a5f808f05fac59f2030",
				When:   "@4.7.2"},
			{URL: "https://github.com/Unidata/netcdf-c/pull/1508.patch",
				SHA256: "56532470875b9a97f3cf2a7d9ed16ef1612df3265ee38880c109428322ff3a40",
				When:   "@4.7.2"},
		},
		Variants: []recipe.Variant{
			{Name: "mpi", Default: "on", Description: "Enable parallel I/O for netcdf-4"},
			{Name: "parallel-netcdf", Default: "off", Description: "Enable parallel I/O for classic files"},
			{Name: "pic", Default: "on", Description: "Produce position-independent code"},
			{Name: "shared", Default: "on", Description: "Enable shared library"},
			{Name: "dap", Default: "off", Description: "Enable DAP support"},
			{Name: "jna", Default: "off", Description: "Enable JNA support"},
		},
		Dependencies: []recipe.Dependency{
			{Spec: "zlib@1.2.5:", Type: []string{"build", "link"}},
			{Spec: "hdf5@1.8.9:+hl", Type: []string{"build", "link"}},
			{Spec: "hdf5+mpi", When: "+mpi"},
			{Spec: "parallel-netcdf", Type: []string{"build", "link"}, When: "+parallel-netcdf"},
			{Spec: "mpi", Type: []string{"build", "link", "run"}, When: "+mpi"},
			{Spec: "mpi", Type: []string{"build", "link", "run"}, When: "+parallel-netcdf"},
		},
		Conflicts: []recipe.Conflict{
			{Spec: "+parallel-netcdf", When: "@:4.0",
				Msg: "parallel I/O for classic files arrived in 4.1.0"},
		},
		LibNames:      []string{"netcdf"},
		BuildSystem:   "autotools",
		RunTests:      true,
		ConfigureArgs: netcdfConfigureArgs,
	})
}

func netcdfConfigureArgs(s *spec.Spec) ([]string, error) {
	var cflags, cppflags, ldflags, libs []string

	args := []string{
		"--enable-v2",
		"--enable-utilities",
		"--enable-static",
		"--enable-largefile",
		"--enable-netcdf-4",
	}
	if s.Satisfies("@4.1:") {
		args = append(args, "--enable-fsync")
	}
	if s.Satisfies("@4.3.1:") {
		args = append(args, "--enable-dynamic-loading")
	}
	args = append(args, recipe.EnableOrDisable(s, "shared"))

	if !s.VariantEnabled("shared") || s.VariantEnabled("pic") {
		// static libs still have to be usable inside shared builds
		cflags = append(cflags, "-fPIC")
	}

	args = append(args, recipe.EnableOrDisable(s, "dap"))

	if s.Satisfies("@4.4:") {
		if s.VariantEnabled("mpi") {
			args = append(args, "--enable-parallel4")
		} else {
			args = append(args, "--disable-parallel4")
		}
	}
	if s.Satisfies("@4.3.2:") {
		args = append(args, recipe.EnableOrDisable(s, "jna"))
	}

	// configure dropped --with-hdf5 in 4.1.3; the location travels in
	// CPPFLAGS/LDFLAGS instead.
	if hdf5, ok := s.Dep("hdf5:hl"); ok {
		cppflags = append(cppflags, "-I"+hdf5.IncludeDir())
		if !hdf5.VariantEnabled("shared") {
			collector := tpl.NewCollector(s, tpl.Config{
				Queries:        map[string]string{"hdf5": "hdf5:hl,fortran"},
				StaticDenylist: []string{"sci_cray"},
				Shared:         false,
				WrapGroups:     true,
			})
			gathered := collector.Gather([]string{"hdf5"})["hdf5"]
			libs = append(libs, gathered.Libs...)
			for _, dir := range gathered.LibDirs {
				ldflags = append(ldflags, "-L"+dir)
			}
			ldflags = append(ldflags, "-Wl,--allow-multiple-definition")
		} else {
			ldflags = append(ldflags, "-L"+hdf5.LibDir())
		}
	}

	if s.VariantEnabled("parallel-netcdf") {
		args = append(args, "--enable-pnetcdf")
		if pnetcdf, ok := s.Dep("parallel-netcdf"); ok {
			cppflags = append(cppflags, "-I"+pnetcdf.IncludeDir())
			ldflags = append(ldflags, "-L"+pnetcdf.LibDir())
		}
	} else {
		args = append(args, "--disable-pnetcdf")
	}

	if s.VariantEnabled("mpi") || s.VariantEnabled("parallel-netcdf") {
		args = append(args, "CC="+s.Compiler.CC)
	}

	args = append(args,
		"CFLAGS="+strings.Join(cflags, " "),
		"CPPFLAGS="+strings.Join(cppflags, " "),
		"LDFLAGS="+strings.Join(ldflags, " "),
		"LIBS="+strings.Join(libs, " "),
	)
	return args, nil
}
