// Package config merges flags, CAPTIONCLIP_* environment variables and an
// optional config file into typed Settings.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"captionclip/internal/dirs"
	"captionclip/internal/resolver"
	"captionclip/internal/util"
)

// DefaultListen is the local API address.
const DefaultListen = "127.0.0.1:7077"

// Settings is the resolved configuration.
type Settings struct {
	WorkDir          string        `validate:"required"`
	FFmpeg           string        // explicit binary, else PATH lookup
	FFprobe          string        // explicit binary, else PATH lookup
	Font             string        // drawtext font name, empty for the engine default
	FetchTimeout     time.Duration `validate:"gte=0"`
	EngineTimeout    time.Duration `validate:"gte=0"`
	IndirectionHosts []string      `validate:"dive,hostname"`
	Verbose          bool
	LogJSON          bool
	Jobs             int    `validate:"gte=1,lte=16"`
	Listen           string `validate:"hostname_port"`
}

// persistentKeys maps viper keys to root persistent flag names.
var persistentKeys = map[string]string{
	"work_dir":          "work-dir",
	"ffmpeg":            "ffmpeg",
	"ffprobe":           "ffprobe",
	"font":              "font",
	"fetch_timeout":     "fetch-timeout",
	"engine_timeout":    "engine-timeout",
	"indirection_hosts": "indirection-host",
	"verbose":           "verbose",
	"log_json":          "log-json",
	"jobs":              "jobs",
}

// SetDefaults registers the built-in values.
func SetDefaults() {
	viper.SetDefault("work_dir", util.DefaultWorkspaceDir())
	viper.SetDefault("font", "Impact")
	viper.SetDefault("fetch_timeout", 2*time.Minute)
	viper.SetDefault("engine_timeout", 10*time.Minute)
	viper.SetDefault("indirection_hosts", resolver.DefaultIndirectionHosts)
	viper.SetDefault("jobs", 2)
	viper.SetDefault("listen", DefaultListen)
}

// Init wires viper with the config path, environment and root flags.
// Errors are non-fatal; a missing config file is normal.
func Init(root *cobra.Command) error {
	_ = dirs.EnsureAll()

	if cfgDir, err := dirs.ConfigDir(); err == nil {
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // config.{yaml|yml|json|toml}

	viper.SetEnvPrefix("CAPTIONCLIP")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	SetDefaults()

	for key, flag := range persistentKeys {
		if f := root.PersistentFlags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load reads the current viper state into Settings and validates it.
func Load() (Settings, error) {
	s := Settings{
		WorkDir:          viper.GetString("work_dir"),
		FFmpeg:           viper.GetString("ffmpeg"),
		FFprobe:          viper.GetString("ffprobe"),
		Font:             viper.GetString("font"),
		FetchTimeout:     viper.GetDuration("fetch_timeout"),
		EngineTimeout:    viper.GetDuration("engine_timeout"),
		IndirectionHosts: hostList(viper.GetStringSlice("indirection_hosts")),
		Verbose:          viper.GetBool("verbose"),
		LogJSON:          viper.GetBool("log_json"),
		Jobs:             viper.GetInt("jobs"),
		Listen:           viper.GetString("listen"),
	}
	if err := validator.New().Struct(s); err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// hostList accepts both list values and a single comma separated env value.
func hostList(in []string) []string {
	var out []string
	for _, v := range in {
		for _, h := range strings.Split(v, ",") {
			if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}
