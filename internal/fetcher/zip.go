package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractZIP extracts all files from a ZIP archive into destDir and returns
// the extracted paths. Entries that would escape destDir are rejected.
func ExtractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open zip %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var extracted []string
	for _, f := range r.File {
		path, err := extractZIPEntry(f, destDir)
		if err != nil {
			return extracted, err
		}
		if path != "" {
			extracted = append(extracted, path)
		}
	}
	return extracted, nil
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	cleaned := filepath.Clean(f.Name)
	if strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", eris.Errorf("fetcher: zip entry %q escapes destination", f.Name)
	}
	dest := filepath.Join(destDir, cleaned)

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return "", eris.Wrapf(err, "fetcher: create dir %s", dest)
		}
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", eris.Wrapf(err, "fetcher: create dir for %s", dest)
	}

	src, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: open zip entry %s", f.Name)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: create %s", dest)
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, src); err != nil {
		return "", eris.Wrapf(err, "fetcher: extract %s", f.Name)
	}
	return dest, nil
}

// FindByExt returns the first file under dir with the given extension.
func FindByExt(dir, ext string) (string, error) {
	var found string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !info.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: walk %s", dir)
	}
	if found == "" {
		return "", eris.Errorf("fetcher: no %s file under %s", ext, dir)
	}
	return found, nil
}
