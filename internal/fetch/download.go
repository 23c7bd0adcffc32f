package fetch

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/qiniu/x/log"
)

// DefaultRetries is how often a failed download is retried before
// giving up. Mirrors and proxies on build clusters flake routinely.
const DefaultRetries = 4

func newClient() *retryablehttp.Client {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = DefaultRetries
	client.HTTPClient = &http.Client{Timeout: 15 * time.Minute}
	return client
}

// Download fetches url into destDir, returning the local path. An
// already-present file with a matching checksum is reused. A non-empty
// sha256 is verified; mismatches remove the file and fail.
func Download(url, destDir, sha256sum string) (string, error) {
	dest := filepath.Join(destDir, filepath.Base(url))

	if _, err := os.Stat(dest); err == nil {
		if sha256sum == "" {
			return dest, nil
		}
		if err := VerifySHA256(dest, sha256sum); err == nil {
			log.Infof("fetch: using cached %s", dest)
			return dest, nil
		}
		log.Warnf("fetch: cached %s fails checksum, refetching", dest)
		os.Remove(dest)
	}

	log.Infof("fetch: downloading %s", url)
	resp, err := newClient().Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch: downloading %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: downloading %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(destDir, ".download-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("fetch: writing %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	if sha256sum != "" {
		if err := VerifySHA256(tmp.Name(), sha256sum); err != nil {
			return "", err
		}
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	return dest, nil
}

// VerifySHA256 checks a file against its expected hex digest.
func VerifySHA256(path, want string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("fetch: %s: checksum mismatch: got %s, want %s", path, got, want)
	}
	return nil
}
