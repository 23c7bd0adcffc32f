package policy

import (
	"os"
	"path/filepath"
	"testing"
)

const basePolicy = `
system: generic
notes:
  - base configuration
static_denylist:
  - sci_cray
virtuals:
  mpi: [openmpi, mpich]
packages:
  openmpi:
    version: "4.0.5"
  zlib:
    version: "1.2.11"
    variants:
      shared: "on"
`

const crayPolicy = `
system: cray-cnl7
notes:
  - cray overlay
modules:
  - PrgEnv-cray
  - craype-x86-rome
virtuals:
  mpi: [cray-mpich]
packages:
  cray-mpich:
    version: "8.1.4"
    external: true
    module: cray-mpich/8.1.4
    default: true
  zlib:
    variants:
      shared: "off"
    notes:
      - static zlib on cray
`

func writePolicyTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "policy.yaml"), []byte(basePolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "platform"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "platform", "cray.yaml"), []byte(crayPolicy), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLoadBase(t *testing.T) {
	dir := writePolicyTree(t)
	p, err := Load(filepath.Join(dir, "policy.yaml"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.System != "generic" {
		t.Errorf("System = %q, want generic", p.System)
	}
	if provider, ok := p.Provider("mpi"); !ok || provider != "openmpi" {
		t.Errorf("Provider(mpi) = %q, %v; want openmpi", provider, ok)
	}
}

func TestLoadWithPlatformOverlay(t *testing.T) {
	dir := writePolicyTree(t)
	p, err := Load(filepath.Join(dir, "policy.yaml"), "cray")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if p.System != "cray-cnl7" {
		t.Errorf("System = %q, want cray-cnl7", p.System)
	}
	// notes concatenate instead of replacing
	if len(p.Notes) != 2 || p.Notes[0] != "base configuration" || p.Notes[1] != "cray overlay" {
		t.Errorf("Notes = %v", p.Notes)
	}

	if provider, ok := p.Provider("mpi"); !ok || provider != "cray-mpich" {
		t.Errorf("Provider(mpi) = %q, %v; want cray-mpich", provider, ok)
	}
	mpich, ok := p.Package("cray-mpich")
	if !ok || !mpich.External || mpich.Module != "cray-mpich/8.1.4" {
		t.Errorf("cray-mpich policy = %+v", mpich)
	}

	// per-field merge: the overlay flips one variant, keeps the version
	zlib, _ := p.Package("zlib")
	if zlib.Version != "1.2.11" || zlib.Variants["shared"] != "off" {
		t.Errorf("zlib policy = %+v", zlib)
	}
	if len(zlib.Notes) != 1 {
		t.Errorf("zlib notes = %v", zlib.Notes)
	}
}

func TestLoadMissingFileIsFatal(t *testing.T) {
	dir := writePolicyTree(t)
	if _, err := Load(filepath.Join(dir, "nope.yaml"), ""); err == nil {
		t.Error("missing base policy should fail")
	}
	if _, err := Load(filepath.Join(dir, "policy.yaml"), "missing-platform"); err == nil {
		t.Error("missing platform overlay should fail")
	}
}

func TestParseRejectsBadDocuments(t *testing.T) {
	if _, err := Parse([]byte("unknown_field: 1"), "test"); err == nil {
		t.Error("unknown field should be rejected")
	}
	dup := "system: a\nsystem: b\n"
	if _, err := Parse([]byte(dup), "test"); err == nil {
		t.Error("duplicate key should be rejected")
	}
}

func TestProviderPrefersDefault(t *testing.T) {
	p := &Policy{
		Virtuals: map[string][]string{"blas": {"openblas", "cray-libsci"}},
		Packages: map[string]PackagePolicy{
			"cray-libsci": {Default: true},
		},
	}
	if provider, _ := p.Provider("blas"); provider != "cray-libsci" {
		t.Errorf("Provider(blas) = %q, want cray-libsci", provider)
	}
	if _, ok := p.Provider("lapack"); ok {
		t.Error("unknown virtual should not resolve")
	}
}
