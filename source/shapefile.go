package source

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// Component files that make up a shapefile.
var shapefilePatterns = []string{"**/*.shp", "**/*.shx", "**/*.dbf", "**/*.prj", "**/*.cpg"}

// ShapefileArchive collects the shapefile component files under dir into a
// zip archive at dest, suitable for the Shapefile upload method. When no
// patterns are given, the standard component extensions are used.
func ShapefileArchive(dir, dest string, patterns ...string) error {
	if len(patterns) == 0 {
		patterns = shapefilePatterns
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}

	var paths []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(os.DirFS(absDir), pattern)
		if err != nil {
			return fmt.Errorf("glob %s: %w", pattern, err)
		}
		for _, match := range matches {
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}
	if len(paths) == 0 {
		return fmt.Errorf("no shapefile components found under %s", dir)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		_ = out.Close()
	}()

	zw := zip.NewWriter(out)
	for _, path := range paths {
		err := addArchiveFile(zw, absDir, path)
		if err != nil {
			return err
		}
	}

	err = zw.Close()
	if err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	return out.Close()
}

func addArchiveFile(zw *zip.Writer, dir, name string) error {
	file, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer func() {
		_ = file.Close()
	}()

	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("add %s to archive: %w", name, err)
	}

	_, err = io.Copy(w, file)
	if err != nil {
		return fmt.Errorf("write %s to archive: %w", name, err)
	}

	return nil
}

// ShapefileFromDir archives the shapefile components under dir and uploads
// the archive.
func (s *Source) ShapefileFromDir(ctx context.Context, dir string) (*Source, error) {
	tmp, err := os.CreateTemp("", "shapefile-*.zip")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	err = ShapefileArchive(dir, tmpPath)
	if err != nil {
		return nil, err
	}

	archive, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer func() {
		_ = archive.Close()
	}()

	return s.Shapefile(ctx, archive)
}
