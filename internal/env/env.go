package env

import (
	"os"
	"path/filepath"
)

// WorkDir returns the root of all scibuild state. SCIBUILD_WORKDIR
// overrides the default user cache location.
func WorkDir() (string, error) {
	if dir := os.Getenv("SCIBUILD_WORKDIR"); dir != "" {
		return dir, nil
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".scibuild"), nil
}

func subDir(name string) (string, error) {
	workDir, err := WorkDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(workDir, name)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// DownloadDir holds fetched source archives.
func DownloadDir() (string, error) {
	return subDir("downloads")
}

// StageDir holds per-build unpacked sources and build trees.
func StageDir() (string, error) {
	return subDir("stage")
}

// StoreDir holds install prefixes of finished builds.
func StoreDir() (string, error) {
	return subDir("store")
}
