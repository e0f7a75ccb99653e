package tools

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"
)

// GetRootFolder returns the folder searched for geofuse.yaml after the working directory:
// GEOFUSE_WORKDIR when set, the repository root under go test, the executable folder otherwise.
func GetRootFolder() string {
	assetsFromEnv := os.Getenv("GEOFUSE_WORKDIR")
	if assetsFromEnv != "" {
		return assetsFromEnv
	} else if strings.HasSuffix(os.Args[0], ".test") || strings.HasSuffix(os.Args[0], ".test.exe") {
		_, b, _, _ := runtime.Caller(0)
		return filepath.Dir(filepath.Dir(b))
	} else {
		ex, err := os.Executable()
		if err != nil {
			glog.Warningln("cannot retrieve executable directory", err)
			return "."
		}
		return filepath.Dir(ex)
	}
}
