//go:build !unix

package policy

// DetectPlatform reports no platform overlay on systems without uname.
func DetectPlatform() string {
	return ""
}
