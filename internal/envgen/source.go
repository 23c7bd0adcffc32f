package envgen

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/qiniu/x/log"
)

// importPatterns lists the variable names the generated script is
// allowed to push back into the build process environment. Everything
// else the script sets stays inside the subshell.
//
// TODO: confirm with the platform owners whether MPI90 should read
// MPIF90; other call sites in the legacy workflow match MPIFC instead.
var importPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ATDM_.*$`),
	regexp.MustCompile(`^(MPICC|MPICXX|MPI90|MPICH_CXX|OMPI_CXX)$`),
	regexp.MustCompile(`^.*_ROOT$`),
}

// ShouldImport reports whether a variable name is propagated back from
// the sourced script.
func ShouldImport(name string) bool {
	for _, re := range importPatterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// FilterEnviron keeps only the NAME=value entries whose name matches an
// import pattern. Malformed entries are dropped.
func FilterEnviron(environ []string) map[string]string {
	out := make(map[string]string)
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !ShouldImport(name) {
			continue
		}
		out[name] = strings.TrimSpace(value)
	}
	return out
}

// SourceAndImport sources the script in a subordinate bash shell,
// captures the resulting environment and copies the allowed subset into
// the current process environment. The invocation blocks until the
// shell exits.
func SourceAndImport(script string) error {
	log.Infof("envgen: sourcing %s to capture environment", script)

	cmd := exec.Command("bash", "-c", fmt.Sprintf("source %s && env", script))
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("envgen: sourcing %s: %w", script, err)
	}

	var environ []string
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		environ = append(environ, scanner.Text())
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("envgen: sourcing %s: %w", script, err)
	}
	if scanErr != nil {
		return fmt.Errorf("envgen: reading environment of %s: %w", script, scanErr)
	}

	for name, value := range FilterEnviron(environ) {
		log.Debugf("envgen: importing %s=%s", name, value)
		if err := os.Setenv(name, value); err != nil {
			return err
		}
	}
	return nil
}
