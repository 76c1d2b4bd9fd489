package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ExtractShapefileZIP extracts a zipped shapefile bundle (.shp, .shx, .dbf,
// .prj, ...) into destDir and returns the path of the single .shp it contains.
func ExtractShapefileZIP(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: open archive %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var shpPaths []string
	for _, f := range r.File {
		path, err := extractEntry(f, destDir)
		if err != nil {
			return "", err
		}
		if strings.EqualFold(filepath.Ext(path), ".shp") {
			shpPaths = append(shpPaths, path)
		}
	}

	switch len(shpPaths) {
	case 0:
		return "", eris.Errorf("zip: no .shp file in %s", zipPath)
	case 1:
		return shpPaths[0], nil
	default:
		return "", eris.Errorf("zip: %d .shp files in %s, expected 1", len(shpPaths), zipPath)
	}
}

// extractEntry writes one archive member under destDir. Directories return "".
func extractEntry(f *zip.File, destDir string) (string, error) {
	// Reject zip slip.
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q", f.Name)
	}

	if f.FileInfo().IsDir() {
		return "", eris.Wrap(os.MkdirAll(destPath, 0o755), "zip: create directory")
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrapf(err, "zip: write %s", destPath)
	}
	return destPath, nil
}
