package piforge

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
	Path   string // file the values were loaded from, for write-back
}

// loadConfig reads piforge.conf from the working directory, falling back
// to /etc/piforge.conf. A missing file is not an error; every value has
// a default applied in initConfig.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	candidates := []string{path}
	if path == ConfigFile {
		candidates = append(candidates, SystemConf)
	}

	for _, candidate := range candidates {
		file, err := os.Open(candidate)
		if err != nil {
			continue
		}
		cfg.Path = candidate
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		err = scanner.Err()
		file.Close()
		if err != nil {
			return cfg, err
		}
		break
	}

	// Merge PIFORGE_* env overrides
	mergeEnvOverrides(cfg)

	return cfg, nil
}

// Merge PIFORGE_* env overrides. WITH_HDMI is also honoured bare because
// that is how the original build scripts spell it.
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "PIFORGE_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}

	if hdmi := os.Getenv("WITH_HDMI"); hdmi != "" {
		cfg.Values["PIFORGE_WITH_HDMI"] = hdmi
	}
}

func initConfig(cfg *Config) {
	SourceDir = cfg.Values["PIFORGE_SRC"]
	if SourceDir == "" {
		SourceDir = "."
	}

	CacheDir = cfg.Values["PIFORGE_CACHE_DIR"]
	if CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/tmp"
		}
		CacheDir = filepath.Join(home, ".cache", "piforge")
	}

	StageDir = cfg.Values["PIFORGE_STAGE_DIR"]
	if StageDir == "" {
		StageDir = filepath.Join(SourceDir, "sdcard")
	}

	DistDir = cfg.Values["PIFORGE_DIST_DIR"]
	if DistDir == "" {
		DistDir = filepath.Join(SourceDir, "dist")
	}

	LogDir = cfg.Values["PIFORGE_LOG_DIR"]
	if LogDir == "" {
		LogDir = filepath.Join(CacheDir, "logs")
	}

	Prefix32 = cfg.Values["PIFORGE_PREFIX"]
	if Prefix32 == "" {
		Prefix32 = "arm-none-eabi-"
	}
	Prefix64 = cfg.Values["PIFORGE_PREFIX64"]
	if Prefix64 == "" {
		Prefix64 = "aarch64-none-elf-"
	}

	WithHDMI = cfg.Values["PIFORGE_WITH_HDMI"] == "1"

	MakeJobs = runtime.NumCPU()
	if j := cfg.Values["PIFORGE_JOBS"]; j != "" {
		if n, err := strconv.Atoi(j); err == nil && n > 0 {
			MakeJobs = n
		}
	}

	Debug = cfg.Values["PIFORGE_DEBUG"] == "1"
	Verbose = cfg.Values["PIFORGE_VERBOSE"] == "1"

	if url := cfg.Values["PIFORGE_BOOT_URL"]; url != "" {
		firmwareBootURL = strings.TrimRight(url, "/")
	}
	if url := cfg.Values["PIFORGE_WLAN_URL"]; url != "" {
		firmwareWlanURL = strings.TrimRight(url, "/")
	}
}

// setConfigValue updates a key in memory and rewrites the config file,
// preserving unrelated lines and comments.
func setConfigValue(cfg *Config, key, value string) error {
	cfg.Values[key] = value

	path := cfg.Path
	if path == "" {
		path = ConfigFile
	}

	var lines []string
	replaced := false
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			trimmed := strings.TrimSpace(line)
			if !strings.HasPrefix(trimmed, "#") {
				if parts := strings.SplitN(trimmed, "=", 2); len(parts) == 2 &&
					strings.TrimSpace(parts[0]) == key {
					lines = append(lines, fmt.Sprintf("%s=%s", key, value))
					replaced = true
					continue
				}
			}
			lines = append(lines, line)
		}
	}
	if !replaced {
		lines = append(lines, fmt.Sprintf("%s=%s", key, value))
	}

	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
