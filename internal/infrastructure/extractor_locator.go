package infrastructure

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

var lookPath = exec.LookPath

// LocateExtractor finds the yt-dlp executable. An absolute configured binary
// wins; otherwise the managed install dir, PATH and the search paths are
// tried in that order.
func LocateExtractor(binary, managedDir string, searchPaths []string) (string, error) {
	if binary == "" {
		binary = "yt-dlp"
	}

	if filepath.IsAbs(binary) {
		if isExecutable(binary) {
			return binary, nil
		}
		return "", fmt.Errorf("extractor %s is not executable", binary)
	}

	// 1. Managed install
	if managedDir != "" {
		candidate := filepath.Join(managedDir, binary)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	// 2. PATH
	if path, err := lookPath(binary); err == nil {
		return path, nil
	}

	// 3. Common locations; launchd and GUI sessions often run with a bare PATH
	for _, dir := range searchPaths {
		candidate := filepath.Join(dir, binary)
		if isExecutable(candidate) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%s binary not found", binary)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	return info.Mode().Perm()&0111 != 0
}
