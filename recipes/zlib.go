package recipes

import (
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

func init() {
	recipe.Register(&recipe.Recipe{
		Name:     "zlib",
		Homepage: "https://zlib.net",
		URL:      "https://zlib.net/fossils/zlib-{version}.tar.gz",
		HasCode:  true,
		Versions: []recipe.Version{
			{Version: "1.2.13", SHA256: "b3a24de97a8fdbc835b9833169501030b8977031bcb54b3b3ac13740f846ab30"},
			{Version: "1.2.11", SHA256: "c3e5e9fdd5004dcb542feda5ee4f0ff0744628baf8ed2dd5d66f8ca1197cb1a1"},
		},
		Variants: []recipe.Variant{
			{Name: "shared", Default: "on", Description: "Build shared libraries"},
			{Name: "pic", Default: "on", Description: "Produce position-independent code"},
			{Name: "build_type", Default: "release", Values: []string{"release", "debug", "relwithdebinfo"}},
		},
		LibNames:    []string{"z"},
		BuildSystem: "cmake",
		CMakeArgs: func(s *spec.Spec) ([]string, error) {
			return []string{
				recipe.DefineBool("BUILD_SHARED_LIBS", s.VariantEnabled("shared")),
				recipe.DefineBool("CMAKE_POSITION_INDEPENDENT_CODE", s.VariantEnabled("pic")),
			}, nil
		},
	})
}
