package configs

import (
	"flag"
	"os"

	"github.com/hilthontt/roomdrop/internal/infrastructure/env"
)

var configFlag = flag.String("config", "", "path to config file")

// DetermineConfigPath returns the first config file found, or "" when the
// service should run on defaults and environment overrides alone.
func DetermineConfigPath() string {
	if !flag.Parsed() {
		flag.Parse()
	}

	if *configFlag != "" {
		return *configFlag
	}

	if p := env.GetString("ROOMDROP_CONFIG", ""); p != "" {
		return p
	}

	candidates := []string{
		"./config.yaml",
		"./config.yml",
		"../../config.yaml", // keep for local dev
		"/etc/roomdrop/config.yaml",
		"/app/config.yaml", // common in Docker
	}

	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
