package recipes

import (
	"github.com/scibuild/scibuild/recipe"
)

// cray-mpich is the vendor MPI. It is never built from source; the
// platform policy provides it as an external module and marks it the
// mpi provider.
func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "cray-mpich",
		Homepage: "https://www.hpe.com/us/en/compute/hpc/hpc-software.html",
		HasCode:  false,
		Versions: []recipe.Version{
			{Version: "8.1.4"},
		},
		LibNames: []string{"mpich"},
	})
}
