// Package filex contains local filesystem helpers for the CLI client.
package filex

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// EnsureParentDir creates the directory that will hold path (e.g. the
// client's SQLite database) when it does not exist yet.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o770); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return nil
}

// LocalFile is a file opened for upload.
type LocalFile struct {
	Name        string
	ContentType string
	Size        int64
	*os.File
}

// OpenLocal opens path for upload and determines its content type, first from
// the extension and then by sniffing the leading bytes.
func OpenLocal(path string) (*LocalFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	ct, err := detectContentType(f, filepath.Ext(path))
	if err != nil {
		f.Close()
		return nil, err
	}

	return &LocalFile{Name: filepath.Base(path), ContentType: ct, Size: fi.Size(), File: f}, nil
}

func detectContentType(f *os.File, ext string) (string, error) {
	if ct := mime.TypeByExtension(strings.ToLower(ext)); ct != "" {
		mediatype, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mediatype, nil
		}
	}

	head := make([]byte, 512)
	n, err := f.Read(head)
	if err != nil && err != io.EOF {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	ct, _, _ := mime.ParseMediaType(http.DetectContentType(head[:n]))
	return ct, nil
}
