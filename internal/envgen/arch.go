package envgen

import (
	"fmt"
	"strings"
)

// targetsToKokkos maps Cray PE target module names (CRAY_CPU_TARGET /
// CRAY_ACCEL_TARGET values) to Kokkos architecture codes.
var targetsToKokkos = map[string]string{
	"x86-rome":         "ZEN2",
	"x86-milan":        "ZEN3",
	"x86-64":           "ZEN2",
	"mic-knl":          "KNL",
	"haswell":          "HSW",
	"broadwell":        "BDW",
	"skylake":          "SKX",
	"amd-gfx906":       "VEGA906",
	"amd-gfx908":       "VEGA908",
	"amd-gfx90a":       "VEGA90A",
	"nvidia70":         "VOLTA70",
	"nvidia80":         "AMPERE80",
	"accel-nvidia70":   "VOLTA70",
	"accel-nvidia80":   "AMPERE80",
	"accel-amd-gfx90a": "VEGA90A",
}

// KokkosArch derives the Kokkos architecture string for a build. The
// CPU code comes from the Cray PE target module when one is loaded and
// falls back to the given default otherwise. When an accelerator target
// is requested the platform module system must have set the accelerator
// target variable; a missing one is a hard error since guessing a GPU
// architecture produces binaries that die at launch.
func KokkosArch(getenv func(string) string, defaultCPU, accelTarget string) (string, error) {
	arch := defaultCPU
	if target := getenv("CRAY_CPU_TARGET"); target != "" {
		if mapped, ok := targetsToKokkos[target]; ok {
			arch = mapped
		}
	}
	arch = strings.ToUpper(arch)

	if accelTarget != "" && accelTarget != "none" {
		target := getenv("CRAY_ACCEL_TARGET")
		if target == "" {
			return "", fmt.Errorf("envgen: accelerator build requested but CRAY_ACCEL_TARGET is not set")
		}
		mapped, ok := targetsToKokkos[target]
		if !ok {
			return "", fmt.Errorf("envgen: unknown accelerator target %q", target)
		}
		arch += ";" + mapped
	}
	return arch, nil
}
