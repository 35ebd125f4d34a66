package deps

import (
	"fmt"
	"os"
	"os/exec"
)

// FindFFmpeg returns the ffmpeg binary. A non-empty customPath is tried as a
// file first, then looked up in PATH.
func FindFFmpeg(customPath string) (string, error) {
	return find("ffmpeg", customPath)
}

// FindFFprobe returns the ffprobe binary, resolved like FindFFmpeg.
func FindFFprobe(customPath string) (string, error) {
	return find("ffprobe", customPath)
}

func find(name, customPath string) (string, error) {
	if customPath != "" {
		if st, err := os.Stat(customPath); err == nil && !st.IsDir() {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find %s at %q", name, customPath)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find %s in PATH. Please install ffmpeg.", name)
}
