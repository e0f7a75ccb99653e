package las

import (
	"io"
	"os"

	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/errs"
)

// lidario opens files by name, so files on any other afero file system go through a temporary
// copy on disk.
func isOsFs(fs afero.Fs) bool {
	_, ok := fs.(*afero.OsFs)
	return ok
}

func stageIn(fs afero.Fs, path string) (string, func(), error) {
	if isOsFs(fs) {
		return path, func() {}, nil
	}
	src, err := fs.Open(path)
	if err != nil {
		return "", nil, errs.IO(err, "las: open %s", path)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "geofuse-*.las")
	if err != nil {
		return "", nil, errs.IO(err, "las: stage %s", path)
	}
	cleanup := func() { os.Remove(tmp.Name()) }
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		cleanup()
		return "", nil, errs.IO(err, "las: stage %s", path)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", nil, errs.IO(err, "las: stage %s", path)
	}
	return tmp.Name(), cleanup, nil
}

func stageOut(fs afero.Fs, path string) (string, func() error, error) {
	if isOsFs(fs) {
		return path, func() error { return nil }, nil
	}
	tmp, err := os.CreateTemp("", "geofuse-*.las")
	if err != nil {
		return "", nil, errs.IO(err, "las: stage %s", path)
	}
	name := tmp.Name()
	tmp.Close()
	// lidario creates the file itself
	os.Remove(name)

	publish := func() error {
		defer os.Remove(name)
		b, err := os.ReadFile(name)
		if err != nil {
			return errs.IO(err, "las: read staged %s", path)
		}
		if err := afero.WriteFile(fs, path, b, 0o644); err != nil {
			return errs.IO(err, "las: create %s", path)
		}
		return nil
	}
	return name, publish, nil
}
