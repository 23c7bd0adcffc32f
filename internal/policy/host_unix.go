//go:build unix

package policy

import (
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// DetectPlatform guesses which platform overlay applies to this host.
// A loaded Cray PE module is the strongest signal; otherwise the kernel
// release string decides.
func DetectPlatform() string {
	if os.Getenv("CRAY_CPU_TARGET") != "" {
		return "cray"
	}
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	release := strings.ToLower(unix.ByteSliceToString(uts.Release[:]))
	if strings.Contains(release, "cray") {
		return "cray"
	}
	return strings.ToLower(unix.ByteSliceToString(uts.Sysname[:]))
}
