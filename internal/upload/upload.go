// Package upload delivers finished media directories to the jump server.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/process"
)

// Server describes the upload target. URL is a local path, a file:// URL
// or an smb://host/share[/path] URL; SMB shares must already be mounted
// at MountRoot.
type Server struct {
	URL       string `toml:"url" json:"url"`
	Username  string `toml:"username" json:"username,omitempty"`
	Password  string `toml:"password" json:"-"`
	MountRoot string `toml:"mount_root" json:"mount_root,omitempty"`
}

// Uploader sends a directory to a server and reports pass/fail with a
// human readable message.
type Uploader interface {
	Upload(ctx context.Context, dir string, srv Server) (bool, string)
}

// ShareUploader copies into a mounted network share.
type ShareUploader struct {
	logger logging.Logger
}

// NewShareUploader creates a ShareUploader.
func NewShareUploader(logger logging.Logger) *ShareUploader {
	return &ShareUploader{logger: logger}
}

// Destination resolves the local directory that backs srv.
func Destination(srv Server) (string, error) {
	raw := strings.TrimSpace(srv.URL)
	if raw == "" {
		return "", errors.New("no server configured")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, including Windows drive letters
		return filepath.Clean(raw), nil
	}
	switch u.Scheme {
	case "file":
		return filepath.FromSlash(u.Path), nil
	case "smb":
		if srv.MountRoot == "" {
			return "", fmt.Errorf("share %s is not mounted", u.Host)
		}
		// first path element is the share name, which the mount already covers
		rest := strings.TrimPrefix(u.Path, "/")
		if _, sub, ok := strings.Cut(rest, "/"); ok {
			return filepath.Join(srv.MountRoot, filepath.FromSlash(sub)), nil
		}
		return filepath.Clean(srv.MountRoot), nil
	default:
		return "", fmt.Errorf("unsupported server scheme %q", u.Scheme)
	}
}

// Upload copies dir into <destination>/<base of dir>. Files are written
// under a temporary name and renamed once complete.
func (u *ShareUploader) Upload(ctx context.Context, dir string, srv Server) (bool, string) {
	dest, err := Destination(srv)
	if err != nil {
		return false, err.Error()
	}
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return false, fmt.Sprintf("%s is not a directory", dir)
	}
	if st, err := os.Stat(dest); err != nil || !st.IsDir() {
		return false, fmt.Sprintf("server path %s is not reachable", dest)
	}

	target := filepath.Join(dest, filepath.Base(filepath.Clean(dir)))
	u.logger.Info("Upload started", "dir", dir, "target", target)

	count, err := copyTree(ctx, dir, target)
	if err != nil {
		if process.IsCanceled(err) {
			return false, "upload cancelled"
		}
		u.logger.Error("Upload failed", "dir", dir, "target", target, "error", err)
		return false, fmt.Sprintf("upload failed: %v", err)
	}
	u.logger.Info("Upload finished", "target", target, "files", count)
	return true, fmt.Sprintf("Uploaded %d files to %s", count, target)
}

func copyTree(ctx context.Context, src, dst string) (int, error) {
	count := 0
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if err := process.Check(ctx, process.CheckpointBeforeFile); err != nil {
			return err
		}
		if err := copyFile(path, out); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".part")
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
