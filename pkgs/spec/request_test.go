package spec

import (
	"testing"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("hdf5@1.10.7~cxx~debug+fortran+hl+mpi+szip build_type=Release")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Name != "hdf5" {
		t.Errorf("Name = %q, want %q", req.Name, "hdf5")
	}
	if req.Range != "1.10.7" {
		t.Errorf("Range = %q, want %q", req.Range, "1.10.7")
	}
	wantEnable := []string{"fortran", "hl", "mpi", "szip"}
	if len(req.Enable) != len(wantEnable) {
		t.Fatalf("Enable = %v, want %v", req.Enable, wantEnable)
	}
	for i, name := range wantEnable {
		if req.Enable[i] != name {
			t.Errorf("Enable[%d] = %q, want %q", i, req.Enable[i], name)
		}
	}
	if len(req.Disable) != 2 || req.Disable[0] != "cxx" || req.Disable[1] != "debug" {
		t.Errorf("Disable = %v, want [cxx debug]", req.Disable)
	}
	if req.Values["build_type"] != "Release" {
		t.Errorf("Values[build_type] = %q, want Release", req.Values["build_type"])
	}
}

func TestParseRequestBareName(t *testing.T) {
	req, err := ParseRequest("mpi")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}
	if req.Name != "mpi" || req.Range != "" || len(req.Enable) != 0 {
		t.Errorf("unexpected request: %+v", req)
	}
}

func TestRequestApplyAndMatches(t *testing.T) {
	req, err := ParseRequest("superlu-dist@6.4.0~ipo~int64+openmp")
	if err != nil {
		t.Fatalf("ParseRequest: %v", err)
	}

	s := &Spec{Name: "superlu-dist", Version: "6.4.0"}
	req.Apply(s)

	if !s.VariantEnabled("openmp") {
		t.Errorf("openmp should be on after Apply")
	}
	if s.Variant("ipo") != "off" || s.Variant("int64") != "off" {
		t.Errorf("ipo/int64 should be off after Apply")
	}
	if !req.Matches(s) {
		t.Errorf("request should match the spec it was applied to")
	}

	other := &Spec{Name: "superlu-dist", Version: "6.2.0"}
	if req.Matches(other) {
		t.Errorf("request should not match version outside range")
	}
}

func TestParseRequestErrors(t *testing.T) {
	for _, bad := range []string{"", "@1.0", "hdf5 bogus", "hdf5+"} {
		if _, err := ParseRequest(bad); err == nil {
			t.Errorf("ParseRequest(%q) should fail", bad)
		}
	}
}
