package recipes

import (
	"github.com/scibuild/scibuild/recipe"
)

// cray-pe-targets models the craype-* target modules of the Cray
// programming environment. There is nothing to fetch or install; the
// platform policy provides it as an external package and the variants
// only exist so other recipes can constrain host and accelerator
// targets.
func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "cray-pe-targets",
		Homepage: "https://docs.nersc.gov/development/libraries/libsci/",
		HasCode:  false,
		Versions: []recipe.Version{
			{Version: "all"},
		},
		Variants: []recipe.Variant{
			{Name: "craype-host", Default: "naples", Values: []string{"naples", "rome"}},
			{Name: "craype-accel", Default: "none", Values: []string{"mi60", "mi100", "none"}},
		},
		Conflicts: []recipe.Conflict{
			{Spec: "craype-accel=mi60", When: "craype-host=rome",
				Msg: "mi60 accelerators are paired with naples hosts"},
			{Spec: "craype-accel=mi100", When: "craype-host=naples",
				Msg: "mi100 accelerators are paired with rome hosts"},
		},
	})
}
