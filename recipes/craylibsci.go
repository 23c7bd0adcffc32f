package recipes

import (
	"github.com/scibuild/scibuild/recipe"
)

// cray-libsci is the vendor blas/lapack. External-only, like
// cray-mpich; it only works correctly in shared form, which is why
// sci_cray sits on the static denylist.
func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "cray-libsci",
		Homepage: "https://docs.nersc.gov/development/libraries/libsci/",
		HasCode:  false,
		Versions: []recipe.Version{
			{Version: "21.08.1.2"},
		},
		Variants: []recipe.Variant{
			{Name: "mpi", Default: "off"},
			{Name: "openmp", Default: "off"},
			{Name: "shared", Default: "on"},
		},
		LibNames: []string{"sci_cray"},
		Components: map[string][]string{
			"openmp": {"sci_cray_mp"},
		},
	})
}
