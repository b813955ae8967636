package subtitle

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ulikunitz/xz"
)

// Decompress reads a whole xz stream.
func Decompress(r io.Reader) ([]byte, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open xz stream")
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, xr); err != nil {
		return nil, errors.Wrap(err, "failed to decompress xz stream")
	}

	return buf.Bytes(), nil
}

// DecompressFile decompresses src into dst.
func DecompressFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer f.Close()

	content, err := Decompress(f)
	if err != nil {
		return errors.Wrapf(err, "failed to decompress %s", src)
	}

	return writeFile(dst, content)
}

// writeFile writes through a temporary file so readers never see a partial
// file.
func writeFile(path string, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}

	tmp := path + ".part"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "failed to move %s into place", path)
	}

	return nil
}

// listFiles returns the names of the regular files in dir ending in suffix.
// A missing directory has no files.
func listFiles(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
