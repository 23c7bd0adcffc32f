package recipe

import (
	"testing"

	"github.com/scibuild/scibuild/pkgs/spec"
)

func testRecipe() *Recipe {
	return &Recipe{
		Name:    "netcdf-c",
		URL:     "https://example.com/netcdf-c-{version}.tar.gz",
		HasCode: true,
		Versions: []Version{
			{Version: "master", Branch: "master"},
			{Version: "4.7.4", SHA256: "aa"},
			{Version: "4.7.3", SHA256: "bb"},
			{Version: "4.4.1", SHA256: "cc"},
		},
		Variants: []Variant{
			{Name: "mpi", Default: "on"},
			{Name: "shared", Default: "on"},
			{Name: "exec_space", Default: "serial", Values: []string{"serial", "openmp", "cuda"}},
			{Name: "build_for", Default: "all", Values: []string{"all", "sparc", "empire", "none"}, Multi: true},
			{Name: "extra_cmake", Default: "none", Free: true},
		},
	}
}

func TestDefaultVersionPrefersHighestRelease(t *testing.T) {
	r := testRecipe()
	if got := r.DefaultVersion(); got != "4.7.4" {
		t.Errorf("DefaultVersion() = %q, want 4.7.4", got)
	}

	r.Versions[2].Preferred = true
	if got := r.DefaultVersion(); got != "4.7.3" {
		t.Errorf("DefaultVersion() with preferred = %q, want 4.7.3", got)
	}
}

func TestSourceURL(t *testing.T) {
	r := testRecipe()
	want := "https://example.com/netcdf-c-4.7.3.tar.gz"
	if got := r.SourceURL("4.7.3"); got != want {
		t.Errorf("SourceURL = %q, want %q", got, want)
	}

	r.URLForVersion = func(version string) string {
		return "ftp://mirror/netcdf-" + version + ".tar.gz"
	}
	if got := r.SourceURL("4.4.1"); got != "ftp://mirror/netcdf-4.4.1.tar.gz" {
		t.Errorf("SourceURL with override = %q", got)
	}
}

func TestValidateVariant(t *testing.T) {
	r := testRecipe()
	tests := []struct {
		name, value string
		wantErr     bool
	}{
		{"mpi", "on", false},
		{"mpi", "maybe", true},
		{"exec_space", "openmp", false},
		{"exec_space", "rocm", true},
		{"build_for", "sparc,empire", false},
		{"build_for", "sparc,bogus", true},
		{"extra_cmake", "-DFOO=BAR|-DBAZ=ON", false},
		{"nonexistent", "on", true},
	}
	for _, tt := range tests {
		err := r.ValidateVariant(tt.name, tt.value)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateVariant(%s, %s) err = %v, wantErr %v", tt.name, tt.value, err, tt.wantErr)
		}
	}
}

func TestApplyVariantArgs(t *testing.T) {
	r := testRecipe()
	s := &spec.Spec{Name: r.Name}

	err := ApplyVariantArgs(r, s, []string{"+shared", "~mpi", "exec_space=openmp"})
	if err != nil {
		t.Fatalf("ApplyVariantArgs: %v", err)
	}
	if !s.VariantEnabled("shared") || s.Variant("mpi") != "off" || s.Variant("exec_space") != "openmp" {
		t.Errorf("unexpected variants: %v", s.Variants)
	}

	if err := ApplyVariantArgs(r, s, []string{"exec_space=rocm"}); err == nil {
		t.Error("illegal value should be rejected")
	}
	if err := ApplyVariantArgs(r, s, []string{"garbage"}); err == nil {
		t.Error("unparsable argument should be rejected")
	}
}

func TestEnableOrDisable(t *testing.T) {
	s := &spec.Spec{Name: "parallel-netcdf"}
	s.SetVariant("cxx", "on")
	s.SetVariant("fortran", "off")

	if got := EnableOrDisable(s, "cxx"); got != "--enable-cxx" {
		t.Errorf("EnableOrDisable(cxx) = %q", got)
	}
	if got := EnableOrDisable(s, "fortran"); got != "--disable-fortran" {
		t.Errorf("EnableOrDisable(fortran) = %q", got)
	}
	if got := WithOrWithout(s, "cxx"); got != "--with-cxx" {
		t.Errorf("WithOrWithout(cxx) = %q", got)
	}
}
