package envgen

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestShouldImport(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"ATDM_CONFIG_USE_OPENMP", true},
		{"ATDM_CONFIG_COMPILER", true},
		{"HDF5_ROOT", true},
		{"BINUTILS_ROOT", true},
		{"MPICC", true},
		{"MPICXX", true},
		{"MPICH_CXX", true},
		{"OMPI_CXX", true},
		{"MPI90", true},
		{"MPIF90", false}, // see the TODO on importPatterns
		{"PATH", false},
		{"HOME", false},
		{"ROOTLESS", false},
		{"ATDMX", false},
	}
	for _, tt := range tests {
		if got := ShouldImport(tt.name); got != tt.want {
			t.Errorf("ShouldImport(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFilterEnviron(t *testing.T) {
	environ := []string{
		"ATDM_CONFIG_USE_CUDA=OFF",
		"HDF5_ROOT=/opt/hdf5",
		"PATH=/usr/bin",
		"SHELL=/bin/bash",
		"MPICC=cc",
		"garbage-without-equals",
	}
	got := FilterEnviron(environ)

	want := map[string]string{
		"ATDM_CONFIG_USE_CUDA": "OFF",
		"HDF5_ROOT":            "/opt/hdf5",
		"MPICC":                "cc",
	}
	if len(got) != len(want) {
		t.Fatalf("FilterEnviron = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("FilterEnviron[%s] = %q, want %q", k, got[k], v)
		}
	}
}

func TestSourceAndImport(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not found")
	}

	script := filepath.Join(t.TempDir(), "environment.sh")
	content := `
export ATDM_CONFIG_USE_OPENMP=ON
export NETCDF_ROOT=/opt/netcdf
export SOME_PRIVATE_THING=nope
`
	if err := os.WriteFile(script, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ATDM_CONFIG_USE_OPENMP", "")
	t.Setenv("NETCDF_ROOT", "")
	t.Setenv("SOME_PRIVATE_THING", "")
	os.Unsetenv("SOME_PRIVATE_THING")

	if err := SourceAndImport(script); err != nil {
		t.Fatalf("SourceAndImport: %v", err)
	}
	if got := os.Getenv("ATDM_CONFIG_USE_OPENMP"); got != "ON" {
		t.Errorf("ATDM_CONFIG_USE_OPENMP = %q, want ON", got)
	}
	if got := os.Getenv("NETCDF_ROOT"); got != "/opt/netcdf" {
		t.Errorf("NETCDF_ROOT = %q, want /opt/netcdf", got)
	}
	if _, ok := os.LookupEnv("SOME_PRIVATE_THING"); ok {
		t.Error("non-matching variable leaked into the environment")
	}

	if err := SourceAndImport(filepath.Join(t.TempDir(), "missing.sh")); err == nil {
		t.Error("sourcing a missing script should fail")
	}
}
