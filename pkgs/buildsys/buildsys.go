package buildsys

import "github.com/scibuild/scibuild/pkgs/spec"

// BuildSystem captures shared capabilities of build helpers (CMake, Autotools, etc).
// It keeps the common lifecycle and dependency/env setup; implementations add their own extras.
type BuildSystem interface {
	// Use injects an installed dependency into the environment.
	Use(dep *spec.Spec)

	// Basic paths.
	Source(dir string)
	InstallDir(dir string)

	// Environment helper.
	Env(key, val string)

	// Lifecycle.
	Configure(args ...string) error
	Build(args ...string) error
	Test(args ...string) error
	Install(args ...string) error

	// Where artifacts land.
	OutputDir() string
}
