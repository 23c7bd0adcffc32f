package fetch

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/qiniu/x/log"
)

// ApplyPatch runs patch(1) against a source tree. A non-empty sha256
// guards against a silently corrupted patch file. Patch application is
// fail-fast: a rejected hunk aborts the build.
func ApplyPatch(sourceDir, patchPath string, strip int, sha256sum string) error {
	if sha256sum != "" {
		if err := VerifySHA256(patchPath, sha256sum); err != nil {
			return err
		}
	}

	log.Infof("fetch: applying %s (-p%d)", patchPath, strip)
	cmd := exec.Command("patch", fmt.Sprintf("-p%d", strip), "-i", patchPath)
	cmd.Dir = sourceDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("fetch: applying %s: %w", patchPath, err)
	}
	return nil
}
