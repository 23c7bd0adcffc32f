package fetch

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func writeTarGz(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range entries {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content))}
		if content == "" && name[len(name)-1] == '/' {
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0o755
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag != tar.TypeDir {
			if _, err := tw.Write([]byte(content)); err != nil {
				t.Fatal(err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestExtractTarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "netcdf-c-4.7.3.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"netcdf-c-4.7.3/":          "",
		"netcdf-c-4.7.3/configure": "#!/bin/sh\n",
		"netcdf-c-4.7.3/README":    "netcdf\n",
	})

	stage := t.TempDir()
	if err := Extract(archive, stage); err != nil {
		t.Fatalf("Extract: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(stage, "netcdf-c-4.7.3", "README"))
	if err != nil || string(data) != "netcdf\n" {
		t.Errorf("README = %q, %v", data, err)
	}

	root, err := SourceRoot(stage)
	if err != nil {
		t.Fatalf("SourceRoot: %v", err)
	}
	if root != filepath.Join(stage, "netcdf-c-4.7.3") {
		t.Errorf("SourceRoot = %q", root)
	}
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	writeTarGz(t, archive, map[string]string{
		"../escape": "boom",
	})
	if err := Extract(archive, t.TempDir()); err == nil {
		t.Error("entry escaping the destination should be rejected")
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "src.zip")
	if err := os.WriteFile(archive, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Extract(archive, t.TempDir()); err == nil {
		t.Error("unsupported format should be rejected")
	}
}

func TestVerifySHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	content := []byte("parallel-netcdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(content)
	want := hex.EncodeToString(sum[:])

	if err := VerifySHA256(path, want); err != nil {
		t.Errorf("VerifySHA256 with correct digest: %v", err)
	}
	if err := VerifySHA256(path, "deadbeef"); err == nil {
		t.Error("VerifySHA256 with wrong digest should fail")
	}
}

func TestDownload(t *testing.T) {
	content := []byte("tarball bytes")
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write(content)
	}))
	defer srv.Close()

	destDir := t.TempDir()
	path, err := Download(srv.URL+"/hdf5-1.10.7.tar.gz", destDir, digest)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(got, content) {
		t.Errorf("downloaded content = %q, %v", got, err)
	}

	// second call reuses the cached file
	if _, err := Download(srv.URL+"/hdf5-1.10.7.tar.gz", destDir, digest); err != nil {
		t.Fatalf("cached Download: %v", err)
	}
	if hits != 1 {
		t.Errorf("server hit %d times, want 1", hits)
	}

	if _, err := Download(srv.URL+"/other.tar.gz", destDir, "0000"); err == nil {
		t.Error("checksum mismatch should fail the download")
	}
}

func TestApplyPatch(t *testing.T) {
	if _, err := exec.LookPath("patch"); err != nil {
		t.Skip("patch not found in PATH")
	}

	src := t.TempDir()
	orig := "line one\nline two\n"
	if err := os.WriteFile(filepath.Join(src, "file.txt"), []byte(orig), 0o644); err != nil {
		t.Fatal(err)
	}

	patch := `--- a/file.txt
+++ b/file.txt
@@ -1,2 +1,2 @@
 line one
-line two
+line 2
`
	patchPath := filepath.Join(t.TempDir(), "fix.patch")
	if err := os.WriteFile(patchPath, []byte(patch), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ApplyPatch(src, patchPath, 1, ""); err != nil {
		t.Fatalf("ApplyPatch: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(src, "file.txt"))
	if err != nil || string(data) != "line one\nline 2\n" {
		t.Errorf("patched content = %q, %v", data, err)
	}

	// a digest mismatch stops before touching the tree
	if err := ApplyPatch(src, patchPath, 1, "deadbeef"); err == nil {
		t.Error("digest mismatch should fail")
	}
}
