package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/kelseyhightower/envconfig"
)

type CLI struct {
	Namespace string `hcl:"namespace,optional"`
	Detail    bool   `hcl:"detail,optional"`
	Format    string `hcl:"format,optional"`
	Host      string `hcl:"host,optional"`
	NoColor   bool   `split_words:"true" hcl:"no_color,optional"`
	Token     string `hcl:"token,optional"`
}

// DefaultCLIConfig returns a pre-populated configuration struct that is used as the base for super imposing user configuration
// settings.
func DefaultCLIConfig() *CLI {
	return &CLI{
		Host:   "localhost:8080",
		Format: "pretty",
	}
}

// FromFile attempts to parse a given HCL configuration file.
func (c *CLI) FromFile(path string) error {
	err := hclsimple.DecodeFile(path, nil, c)
	if err != nil {
		return err
	}

	return nil
}

// FromEnv parses environment variables into the config object based on envconfig name
func (c *CLI) FromEnv() error {
	err := envconfig.Process("gofer_cli", c)
	if err != nil {
		return err
	}

	return nil
}

// Get configuration for command line.
// This involves correctly finding and ordering different possible paths for the configuration file:
//
//  1. The function is intended to be called with paths gleaned from the -config flag in the cli.
//  2. If the user does not use the -config path or the path does not exist,
//     then we default to a few hard coded config path locations.
//  3. Then try to see if the user has set an envvar for the config file, which overrides
//     all previous config file paths.
//  4. Finally, whatever configuration file path is found first is processed.
//
// Whether or not we use the configuration file we then search the environment for all environment variables:
//   - Environment variables are loaded after the config file and therefore overwrite any conflicting keys.
//   - All configuration that goes into a configuration file can also be used as an environment variable.
func InitCLIConfig(flagPath string, loadDefaults bool) (*CLI, error) {
	config := &CLI{}

	// First we initiate the default values for the config.
	if loadDefaults {
		config = DefaultCLIConfig()
	}

	homeDir, _ := os.UserHomeDir()
	possibleConfigPaths := []string{
		flagPath,
		fmt.Sprintf("%s/%s", homeDir, ".gofer.hcl"),
		fmt.Sprintf("%s/%s/%s", homeDir, ".config", "gofer.hcl"),
	}

	path := searchFilePaths(possibleConfigPaths...)

	// envVars top all other entries so if its not empty we just insert it over the current path
	// regardless of if we found one.
	envPath := os.Getenv("GOFER_CLI_CONFIG_PATH")
	if envPath != "" {
		path = envPath
	}

	if path != "" {
		err := config.FromFile(path)
		if err != nil {
			return nil, err
		}
	}

	err := config.FromEnv()
	if err != nil {
		return nil, err
	}

	return config, nil
}
