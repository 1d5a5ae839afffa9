package config

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/kelseyhightower/envconfig"
)

// API defines config settings for the gofer server
type API struct {
	// DevMode turns on humanized debug messages, extra debug logging for the webserver and other
	// convenient features for development. Usually turned on along side LogLevel=debug.
	DevMode bool `split_words:"true" hcl:"dev_mode,optional"`

	// Controls the ability for the API to accept run requests. This setting can be toggled while the
	// server is running.
	IgnorePipelineRunEvents bool `split_words:"true" hcl:"ignore_pipeline_run_events,optional"`

	// RunParallelismLimit is the limit on how many runs a single pipeline can have in progress at the
	// same time. A limit of 0 means no server imposed limit. Pipelines can set their own limit, the
	// effective limit is whichever is smaller.
	RunParallelismLimit int `split_words:"true" hcl:"run_parallelism_limit,optional"`

	// The total amount of pipeline config versions kept per pipeline before the oldest versions start
	// being deleted.
	PipelineVersionLimit int `split_words:"true" hcl:"pipeline_version_limit,optional"`

	// Controls how long Gofer will hold onto events before discarding them. This is an important factor in
	// disk space and memory footprint.
	//
	// Example: Rough math on a 5,000 pipeline Gofer instance with a full 6 months of retention
	//  puts the memory and storage footprint at about 9GB.
	EventLogRetention time.Duration `split_words:"true"`

	// EventLogRetentionHCL is the HCL compatible counter part to EventLogRetention. It allows the parsing of a string
	// to a time.Duration since HCL does not support parsing directly into a time.Duration.
	EventLogRetentionHCL string `ignored:"true" hcl:"event_log_retention,optional"`

	// How often the background process for pruning events should run.
	EventPruneInterval time.Duration `split_words:"true"`

	// EventPruneIntervalHCL is the HCL compatible counter part to EventPruneInterval. It allows the parsing of a string
	// to a time.Duration since HCL does not support parsing directly into a time.Duration.
	EventPruneIntervalHCL string `ignored:"true" hcl:"event_prune_interval,optional"`

	// Log level affects the entire application's logs including launched extensions.
	LogLevel string `split_words:"true" hcl:"log_level,optional"`

	// The total amount of runs before the logs of the oldest run start being deleted.
	TaskExecutionLogExpiry int `split_words:"true" hcl:"task_execution_log_expiry,optional"`

	// Directory to store task execution log files.
	TaskExecutionLogsDir string `split_words:"true" hcl:"task_execution_logs_dir,optional"`

	// TaskExecutionStopTimeout controls the time the scheduler will wait for a normal user container to
	// stop. When the timeout is reached the container will be forcefully terminated.
	TaskExecutionStopTimeout time.Duration `split_words:"true"`

	// TaskExecutionStopTimeoutHCL is the HCL compatible counter part to TaskExecutionStopTimeout. It allows the
	// parsing of a string to a time.Duration since HCL does not support parsing directly into a time.Duration.
	TaskExecutionStopTimeoutHCL string `ignored:"true" hcl:"task_execution_stop_timeout,optional"`

	ExternalEventsAPI *ExternalEventsAPI `split_words:"true" hcl:"external_events_api,block"`
	ObjectStore       *ObjectStore       `hcl:"object_store,block"`
	SecretStore       *SecretStore       `hcl:"secret_store,block"`
	Scheduler         *Scheduler         `hcl:"scheduler,block"`
	Server            *Server            `hcl:"server,block"`
	Extensions        *Extensions        `hcl:"extensions,block"`
}

func DefaultAPIConfig() *API {
	return &API{
		DevMode:                  true,
		IgnorePipelineRunEvents:  false,
		RunParallelismLimit:      0,
		PipelineVersionLimit:     5,
		EventLogRetention:        mustParseDuration("4380h"), // 4380 hours is roughly 6 months.
		EventPruneInterval:       mustParseDuration("3h"),
		LogLevel:                 "debug",
		TaskExecutionLogExpiry:   20,
		TaskExecutionLogsDir:     "/tmp",
		TaskExecutionStopTimeout: mustParseDuration("5m"),
		ExternalEventsAPI:        DefaultExternalEventsAPIConfig(),
		ObjectStore:              DefaultObjectStoreConfig(),
		SecretStore:              DefaultSecretStoreConfig(),
		Scheduler:                DefaultSchedulerConfig(),
		Server:                   DefaultServerConfig(),
		Extensions:               DefaultExtensionsConfig(),
	}
}

// Server represents lower level HTTP server settings.
type Server struct {
	// URL for the server to bind to. Ex: localhost:8080
	Host string `hcl:"host,optional"`

	// How long the service should wait on in-progress connections before hard closing everything out.
	ShutdownTimeout time.Duration `split_words:"true"`

	// ShutdownTimeoutHCL is the HCL compatible counter part to ShutdownTimeout. It allows the parsing of a string
	// to a time.Duration since HCL does not support parsing directly into a time.Duration.
	ShutdownTimeoutHCL string `ignored:"true" hcl:"shutdown_timeout,optional"`

	TLSCertPath string `split_words:"true" hcl:"tls_cert_path,optional"`
	TLSKeyPath  string `split_words:"true" hcl:"tls_key_path,optional"`

	// Path to the sqlite database file backing all internal state.
	StoragePath string `split_words:"true" hcl:"storage_path,optional"`

	// StorageResultsLimit defines the total number of results the database can return in one call to any
	// list endpoint.
	StorageResultsLimit int `split_words:"true" hcl:"storage_results_limit,optional"`
}

// DefaultServerConfig returns a pre-populated configuration struct that is used as the base for super imposing user configuration
// settings.
func DefaultServerConfig() *Server {
	return &Server{
		Host:                "localhost:8080",
		ShutdownTimeout:     mustParseDuration("15s"),
		StoragePath:         "/tmp/gofer.db",
		StorageResultsLimit: 200,
	}
}

// Extensions represents the configuration for Gofer extensions. Extensions are used to generate events to
// which pipelines can subscribe.
type Extensions struct {
	// InstallBaseExtensions attempts to automatically install the cron and interval extensions on first startup.
	InstallBaseExtensions bool `split_words:"true" hcl:"install_base_extensions,optional"`

	// StopTimeout controls the time the scheduler will wait for an extension container to stop. After this period
	// Gofer will attempt to force stop the extension container.
	StopTimeout time.Duration `split_words:"true"`

	// StopTimeoutHCL is the HCL compatible counter part to StopTimeout. It allows the parsing of a string
	// to a time.Duration since HCL does not support parsing directly into a time.Duration.
	StopTimeoutHCL string `ignored:"true" hcl:"stop_timeout,optional"`

	// HealthcheckInterval defines the period of time between attempted connections to all extensions. Extensions
	// are healthchecked to ensure proper operation.
	HealthcheckInterval time.Duration `split_words:"true"`

	// HealthcheckIntervalHCL is the HCL compatible counter part to HealthcheckInterval. It allows the parsing of a
	// string to a time.Duration since HCL does not support parsing directly into a time.Duration.
	HealthcheckIntervalHCL string `ignored:"true" hcl:"healthcheck_interval,optional"`

	// TLSCertPath is the file path of the extension TLS certificate.
	TLSCertPath string `split_words:"true" hcl:"tls_cert_path,optional"`

	// TLSKeyPath is the file path of the extension TLS key.
	TLSKeyPath string `split_words:"true" hcl:"tls_key_path,optional"`
}

func DefaultExtensionsConfig() *Extensions {
	return &Extensions{
		InstallBaseExtensions: true,
		StopTimeout:           mustParseDuration("5m"),
		HealthcheckInterval:   mustParseDuration("30s"),
	}
}

// ExternalEventsAPI controls the settings around the HTTP service that handles external extension events.
type ExternalEventsAPI struct {
	Enable bool `hcl:"enable,optional"`

	// URL for the server to bind to. Ex: localhost:8081
	Host string `hcl:"host,optional"`
}

func DefaultExternalEventsAPIConfig() *ExternalEventsAPI {
	return &ExternalEventsAPI{
		Enable: true,
		Host:   "localhost:8081",
	}
}

// FromEnv parses environment variables into the config object based on envconfig name
func (c *API) FromEnv() error {
	err := envconfig.Process("gofer", c)
	if err != nil {
		return err
	}

	return nil
}

// FromBytes attempts to parse a given HCL configuration.
func (c *API) FromBytes(content []byte) error {
	err := hclsimple.Decode("config.hcl", content, nil, c)
	if err != nil {
		return err
	}

	c.convertDurationFromHCL()

	return nil
}

func (c *API) FromFile(path string) error {
	err := hclsimple.DecodeFile(path, nil, c)
	if err != nil {
		return err
	}

	c.convertDurationFromHCL()

	return nil
}

// convertDurationFromHCL attempts to move the string value of a duration written in HCL to
// the real time.Duration type. This is needed due to advanced types like time.Duration being not handled particularly
// well during HCL parsing: https://github.com/hashicorp/hcl/issues/202
func (c *API) convertDurationFromHCL() {
	if c.EventLogRetentionHCL != "" {
		c.EventLogRetention = mustParseDuration(c.EventLogRetentionHCL)
	}

	if c.EventPruneIntervalHCL != "" {
		c.EventPruneInterval = mustParseDuration(c.EventPruneIntervalHCL)
	}

	if c.TaskExecutionStopTimeoutHCL != "" {
		c.TaskExecutionStopTimeout = mustParseDuration(c.TaskExecutionStopTimeoutHCL)
	}

	if c.Server != nil && c.Server.ShutdownTimeoutHCL != "" {
		c.Server.ShutdownTimeout = mustParseDuration(c.Server.ShutdownTimeoutHCL)
	}

	if c.Extensions != nil && c.Extensions.StopTimeoutHCL != "" {
		c.Extensions.StopTimeout = mustParseDuration(c.Extensions.StopTimeoutHCL)
	}

	if c.Extensions != nil && c.Extensions.HealthcheckIntervalHCL != "" {
		c.Extensions.HealthcheckInterval = mustParseDuration(c.Extensions.HealthcheckIntervalHCL)
	}

	if c.Scheduler != nil && c.Scheduler.Docker != nil && c.Scheduler.Docker.PruneIntervalHCL != "" {
		c.Scheduler.Docker.PruneInterval = mustParseDuration(c.Scheduler.Docker.PruneIntervalHCL)
	}
}

// Get the final configuration for the server.
// This involves correctly finding and ordering different possible paths for the configuration file.
//
// 1) The function is intended to be called with paths gleaned from the -config flag
// 2) Then combine that with possible other config locations that the user might store a config file.
// 3) Then try to see if the user has set an envvar for the config file, which overrides
// all previous config file paths.
// 4) Finally, pass back whatever is deemed the final config path from that process.
//
// We then use that path data to find the config file and read it in via HCL parsers. Once that is finished
// we then take any configuration from the environment and superimpose that on top of the final config struct.
func InitAPIConfig(userDefinedPath string) (*API, error) {
	// First we initiate the default values for the config.
	config := DefaultAPIConfig()

	possibleConfigPaths := []string{userDefinedPath, "/etc/gofer/gofer.hcl"}

	path := searchFilePaths(possibleConfigPaths...)

	// envVars top all other entries so if its not empty we just insert it over the current path
	// regardless of if we found one.
	envPath := os.Getenv("GOFER_CONFIG_PATH")
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

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *API) validate() error {
	if c.SecretStore != nil && c.SecretStore.Sqlite != nil {
		if len(c.SecretStore.Sqlite.EncryptionKey) != 32 {
			return fmt.Errorf("encryption_key must be a 32 character random string")
		}

		if !c.DevMode && c.SecretStore.Sqlite.EncryptionKey == "changemechangemechangemechangeme" {
			return fmt.Errorf("encryption_key cannot be left as default; must be changed to a 32 character random string")
		}
	}

	return nil
}

func PrintAPIEnvs() error {
	var config API
	err := envconfig.Usage("gofer", &config)
	if err != nil {
		return err
	}
	fmt.Println("GOFER_CONFIG_PATH")

	return nil
}
