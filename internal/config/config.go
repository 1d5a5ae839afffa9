// Package config provides the server and command line configuration objects. Configuration is layered;
// defaults first, then any HCL configuration file found, then environment variables on top.
package config

import (
	"os"
	"time"
)

// searchFilePaths returns the first path from the given list that points to an existing regular file.
func searchFilePaths(paths ...string) string {
	for _, path := range paths {
		if path == "" {
			continue
		}

		stat, err := os.Stat(path)
		if err != nil {
			continue
		}

		if stat.IsDir() {
			continue
		}

		return path
	}

	return ""
}

func mustParseDuration(duration string) time.Duration {
	parsedDuration, err := time.ParseDuration(duration)
	if err != nil {
		panic("could not parse duration string: " + duration)
	}

	return parsedDuration
}
