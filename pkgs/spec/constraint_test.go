package spec

import (
	"testing"
)

func testSpec() *Spec {
	s := &Spec{
		Name:    "netcdf-c",
		Version: "4.7.3",
		Variants: map[string]string{
			"mpi":        "on",
			"shared":     "off",
			"exec_space": "openmp",
			"build_for":  "sparc,empire",
		},
	}
	return s
}

func TestConstraintMatches(t *testing.T) {
	tests := []struct {
		constraint string
		want       bool
	}{
		{"", true},
		{"+mpi", true},
		{"~mpi", false},
		{"+shared", false},
		{"~shared", true},
		{"exec_space=openmp", true},
		{"exec_space=cuda", false},
		{"build_for=sparc", true},
		{"build_for=none", false},
		{"@4.7.3", true},
		{"@4.7", true},
		{"@4.4:", true},
		{"@:4.3", false},
		{"@:4.7", true},
		{"@4.3.1:4.7", true},
		{"@4.8:", false},
		{"+mpi exec_space=openmp", true},
		{"+mpi exec_space=cuda", false},
		{"@4.4:~shared", true},
		{"@:4.3~mpi", false},
	}

	s := testSpec()
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			if got := s.Satisfies(tt.constraint); got != tt.want {
				t.Errorf("Satisfies(%q) = %v, want %v", tt.constraint, got, tt.want)
			}
		})
	}
}

func TestConstraintUpperBoundIncludesPatchReleases(t *testing.T) {
	s := &Spec{Name: "hdf5", Version: "1.8.21"}
	if !s.Satisfies("@:1.8") {
		t.Errorf("1.8.21 should satisfy @:1.8")
	}
	if s.Satisfies("@:1.7") {
		t.Errorf("1.8.21 should not satisfy @:1.7")
	}
}

func TestParseConstraintErrors(t *testing.T) {
	for _, bad := range []string{"@", "bogus", "+ +"} {
		if _, err := ParseConstraint(bad); err == nil {
			t.Errorf("ParseConstraint(%q) should fail", bad)
		}
	}
}
