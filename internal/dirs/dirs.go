// Package dirs locates per-user directories for configuration and state.
package dirs

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "captionclip"

// AppName returns the application name used in directory paths.
func AppName() string {
	return appName
}

// ConfigDir holds config.{yaml,toml,json}.
// - Linux: $XDG_CONFIG_HOME/captionclip or ~/.config/captionclip
// - macOS: ~/Library/Application Support/captionclip
// - Windows: os.UserConfigDir()/captionclip
func ConfigDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return underHome("Library", "Application Support", appName)
	case "linux":
		return xdg("XDG_CONFIG_HOME", ".config")
	}
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, appName), nil
}

// StateDir holds the log file written while the terminal UI is active.
// - Linux: $XDG_STATE_HOME/captionclip or ~/.local/state/captionclip
// - macOS: ~/Library/Application Support/captionclip/state
// - Windows: %LocalAppData%/captionclip/state, else ConfigDir/state
func StateDir() (string, error) {
	switch runtime.GOOS {
	case "darwin":
		return underHome("Library", "Application Support", appName, "state")
	case "linux":
		return xdg("XDG_STATE_HOME", ".local", "state")
	}
	if la := os.Getenv("LOCALAPPDATA"); la != "" {
		return filepath.Join(la, appName, "state"), nil
	}
	cfg, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "state"), nil
}

// LogFile is the path of the UI session log inside StateDir.
func LogFile() (string, error) {
	d, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, appName+".log"), nil
}

// Ensure creates the directory if it doesn't exist.
func Ensure(path string) error {
	if path == "" {
		return errors.New("empty path")
	}
	return os.MkdirAll(path, 0o755)
}

// EnsureAll creates the config and state directories.
func EnsureAll() error {
	for _, fn := range []func() (string, error){ConfigDir, StateDir} {
		p, err := fn()
		if err != nil {
			continue
		}
		if err := Ensure(p); err != nil {
			return err
		}
	}
	return nil
}

// xdg resolves $env/captionclip, falling back to ~/<fallback...>/captionclip.
func xdg(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	return underHome(append(fallback, appName)...)
}

func underHome(elem ...string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{home}, elem...)...), nil
}
