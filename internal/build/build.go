package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/qiniu/x/log"

	"github.com/scibuild/scibuild/internal/env"
	"github.com/scibuild/scibuild/internal/fetch"
	"github.com/scibuild/scibuild/internal/vcs"
	"github.com/scibuild/scibuild/pkgs/buildsys"
	"github.com/scibuild/scibuild/pkgs/buildsys/autotools"
	"github.com/scibuild/scibuild/pkgs/buildsys/cmake"
	"github.com/scibuild/scibuild/pkgs/spec"
	"github.com/scibuild/scibuild/recipe"
)

// Target pairs a recipe with the resolved spec to build it as.
type Target struct {
	Recipe *recipe.Recipe
	Spec   *spec.Spec
}

type Builder struct {
	storeDir    string
	stageDir    string
	downloadDir string

	// RunTests enables per-package test stages for recipes that
	// declare them.
	RunTests bool
}

func NewBuilder() (*Builder, error) {
	storeDir, err := env.StoreDir()
	if err != nil {
		return nil, err
	}
	stageDir, err := env.StageDir()
	if err != nil {
		return nil, err
	}
	downloadDir, err := env.DownloadDir()
	if err != nil {
		return nil, err
	}
	return &Builder{storeDir: storeDir, stageDir: stageDir, downloadDir: downloadDir}, nil
}

// Build builds the dependency targets in order, then the main target.
// Each build gets the already-installed targets its spec depends on, so
// configure runs see their dependency prefixes and not the system ones.
// Recipe hooks and dependency injection mutate the process environment,
// so it is snapshotted before the first build and restored afterwards.
func (b *Builder) Build(ctx context.Context, main *Target, deps []*Target) error {
	// Save environment before Build and restore after
	savedEnv := os.Environ()

	defer func() {
		os.Clearenv()
		for _, e := range savedEnv {
			if k, v, ok := strings.Cut(e, "="); ok {
				os.Setenv(k, v)
			}
		}
	}()

	for i, target := range deps {
		if err := b.buildOne(ctx, target, builtDeps(target, deps[:i])); err != nil {
			return err
		}
	}
	return b.buildOne(ctx, main, builtDeps(main, deps))
}

// builtDeps filters already-built targets down to the dependency subtree
// of target, so every build sees the prefixes of its own dependencies.
func builtDeps(target *Target, built []*Target) []*Target {
	want := make(map[*spec.Spec]bool)
	var walk func(*spec.Spec)
	walk = func(s *spec.Spec) {
		for _, dep := range s.Deps() {
			if want[dep] {
				continue
			}
			want[dep] = true
			walk(dep)
		}
	}
	walk(target.Spec)

	var out []*Target
	for _, t := range built {
		if want[t.Spec] {
			out = append(out, t)
		}
	}
	return out
}

func (b *Builder) buildOne(ctx context.Context, target *Target, deps []*Target) error {
	r, s := target.Recipe, target.Spec

	if err := checkConflicts(r, s); err != nil {
		return err
	}

	if s.External {
		log.Infof("build: %s is external (module %s), skipping", s, s.ExternalModule)
		return nil
	}
	if !r.HasCode {
		log.Infof("build: %s has no code, nothing to do", s)
		return nil
	}

	unlock, err := b.lockTarget(s)
	if err != nil {
		return err
	}
	defer unlock()

	// Double-check cache after acquiring lock (another process may have built it)
	if cache, err := b.loadCache(s.Name); err == nil {
		if entry, ok := cache.get(s); ok {
			if _, err := os.Stat(entry.Prefix); err == nil {
				log.Infof("build: %s already installed at %s", s, entry.Prefix)
				s.Prefix = entry.Prefix
				return nil
			}
		}
	}

	log.Infof("build: building %s", s)

	stage := filepath.Join(b.stageDir, s.Name+"-"+s.Version+"-"+variantsHash(s))
	if err := os.RemoveAll(stage); err != nil {
		return err
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return err
	}

	sourceDir, err := b.stageSource(ctx, r, s, stage)
	if err != nil {
		return err
	}
	if err := b.applyPatches(r, s, sourceDir); err != nil {
		return err
	}

	installDir := b.installDir(s)
	buildDir := filepath.Join(stage, "build")
	if err := b.runBuild(r, s, deps, sourceDir, buildDir, installDir, stage); err != nil {
		return err
	}

	cache, err := b.loadCache(s.Name)
	if err != nil {
		cache = &buildCache{}
	}
	cache.set(s, &buildEntry{Prefix: installDir, BuildTime: time.Now()})
	if err := b.saveCache(s.Name, cache); err != nil {
		return err
	}

	s.Prefix = installDir
	return nil
}

// stageSource fetches and unpacks the package source into the stage,
// returning the source root.
func (b *Builder) stageSource(ctx context.Context, r *recipe.Recipe, s *spec.Spec, stage string) (string, error) {
	v, ok := r.FindVersion(s.Version)
	if !ok {
		return "", fmt.Errorf("build: recipe %s declares no version %s", r.Name, s.Version)
	}

	if v.Branch != "" {
		if r.Git == "" {
			return "", fmt.Errorf("build: %s@%s is a branch version but the recipe has no git URL", r.Name, s.Version)
		}
		sourceDir := filepath.Join(stage, "src")
		if err := vcs.NewGitVCS().Sync(ctx, r.Git, v.Branch, sourceDir); err != nil {
			return "", fmt.Errorf("build: syncing %s: %w", r.Git, err)
		}
		return sourceDir, nil
	}

	archive, err := fetch.Download(r.SourceURL(s.Version), b.downloadDir, v.SHA256)
	if err != nil {
		return "", err
	}
	if err := fetch.Extract(archive, stage); err != nil {
		return "", err
	}
	return fetch.SourceRoot(stage)
}

func (b *Builder) applyPatches(r *recipe.Recipe, s *spec.Spec, sourceDir string) error {
	for _, p := range r.Patches {
		if p.When != "" && !s.Satisfies(p.When) {
			continue
		}
		path := p.Path
		if p.URL != "" {
			downloaded, err := fetch.Download(p.URL, b.downloadDir, p.SHA256)
			if err != nil {
				return err
			}
			path = downloaded
		}
		strip := p.Strip
		if strip == 0 {
			strip = 1
		}
		sum := ""
		if p.URL == "" {
			sum = p.SHA256
		}
		if err := fetch.ApplyPatch(sourceDir, path, strip, sum); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) runBuild(r *recipe.Recipe, s *spec.Spec, deps []*Target, sourceDir, buildDir, installDir, stage string) error {
	var bs buildsys.BuildSystem
	var args []string
	var err error

	switch r.BuildSystem {
	case "cmake":
		cm := cmake.New(sourceDir)
		cm.BuildDir(buildDir)
		if r.Generator != "" {
			cm.Generator(r.Generator)
		}
		cm.KeepGoing(r.KeepGoing)
		if buildType := s.Variant("build_type"); buildType != "" {
			cm.BuildType(buildType)
		}
		if r.CMakeArgs != nil {
			if args, err = r.CMakeArgs(s); err != nil {
				return err
			}
		}
		bs = cm
	case "autotools":
		at := autotools.New(sourceDir)
		at.BuildDir(buildDir)
		at.KeepGoing(r.KeepGoing)
		if r.ConfigureArgs != nil {
			if args, err = r.ConfigureArgs(s); err != nil {
				return err
			}
		}
		bs = at
	default:
		return fmt.Errorf("build: recipe %s declares no build system", r.Name)
	}

	bs.InstallDir(installDir)
	for _, dep := range deps {
		if dep.Spec.Prefix != "" {
			bs.Use(dep.Spec)
		}
	}

	if r.PreConfigure != nil {
		hookCtx := &recipe.BuildContext{
			Spec:       s,
			StageDir:   stage,
			SourceDir:  sourceDir,
			BuildDir:   buildDir,
			InstallDir: installDir,
			Setenv:     bs.Env,
		}
		if err := r.PreConfigure(hookCtx); err != nil {
			return err
		}
	}

	if err := bs.Configure(args...); err != nil {
		return fmt.Errorf("build: configuring %s: %w", s, err)
	}
	if err := bs.Build(); err != nil {
		return fmt.Errorf("build: building %s: %w", s, err)
	}
	if b.RunTests && r.RunTests {
		if err := bs.Test(); err != nil {
			return fmt.Errorf("build: testing %s: %w", s, err)
		}
	}
	if err := bs.Install(); err != nil {
		return fmt.Errorf("build: installing %s: %w", s, err)
	}
	return nil
}

// lockTarget serializes concurrent builds of the same package.
func (b *Builder) lockTarget(s *spec.Spec) (unlock func(), err error) {
	dir := b.cacheDir(s.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	lock := flock.New(filepath.Join(dir, ".lock"))
	if err := lock.Lock(); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			log.Warnf("build: unlocking %s: %v", s.Name, err)
		}
	}, nil
}

func checkConflicts(r *recipe.Recipe, s *spec.Spec) error {
	for _, c := range r.Conflicts {
		if c.When != "" && !s.Satisfies(c.When) {
			continue
		}
		if c.Spec != "" && !s.Satisfies(c.Spec) {
			continue
		}
		msg := c.Msg
		if msg == "" {
			msg = "conflicting configuration"
		}
		return fmt.Errorf("build: %s: %s", s, msg)
	}
	return nil
}
