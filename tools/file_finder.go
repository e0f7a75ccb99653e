package tools

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"
)

type FileFinder interface {
	GetFilesToProcess(input string, folder bool, recursive bool, extensions ...string) ([]string, error)
	FindSidecar(filePath string, extensions ...string) (string, bool)
}

type StandardFileFinder struct {
	fs afero.Fs
}

func NewStandardFileFinder() FileFinder {
	return NewFileFinder(afero.NewOsFs())
}

// NewFileFinder looks for files on fs.
func NewFileFinder(fs afero.Fs) FileFinder {
	return &StandardFileFinder{fs: fs}
}

// Returns the files to process. If folder processing is not enabled the input itself is returned,
// otherwise the input folder is scanned for files with the given extensions, descending into
// nested folders only if recursive is set.
func (f *StandardFileFinder) GetFilesToProcess(input string, folder bool, recursive bool, extensions ...string) ([]string, error) {
	if !folder {
		return []string{input}, nil
	}

	var files = make([]string, 0)

	if _, err := f.fs.Stat(input); err != nil {
		return nil, err
	}
	base := filepath.Clean(input)
	err := afero.Walk(
		f.fs,
		input,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if !recursive && filepath.Clean(path) != base {
					return filepath.SkipDir
				}
				return nil
			}
			if hasExtension(info.Name(), extensions) {
				files = append(files, path)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	glog.V(2).Infof("found %d files under %s", len(files), input)
	return files, nil
}

// Looks for a file next to filePath sharing its base name and carrying one of the given extensions.
// Both lower and upper case extensions are tried.
func (f *StandardFileFinder) FindSidecar(filePath string, extensions ...string) (string, bool) {
	base := strings.TrimSuffix(filePath, filepath.Ext(filePath))
	for _, ext := range extensions {
		for _, candidate := range []string{base + strings.ToLower(ext), base + strings.ToUpper(ext)} {
			if info, err := f.fs.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

func hasExtension(name string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
