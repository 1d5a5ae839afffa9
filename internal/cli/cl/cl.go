// Package cl contains global variables used across the cli package. Yeah its probably a bad pattern
// but it works and removes us from dependency hell.
package cl

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/clintjedwards/gofer/internal/config"
	"github.com/clintjedwards/polyfmt"
	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/spf13/cobra"
)

// Harness is a structure for values that all commands need access to.
type Harness struct {
	Fmt            polyfmt.Formatter
	Config         *config.CLI
	ConfigFilePath string
}

// State holds values that aid in the lifetime of a command.
var State *Harness

// httpClient returns a client suitable for talking to the configured server. Local servers
// usually run with self-signed dev certs, so we skip verification for them.
func (s *Harness) httpClient() *http.Client {
	host, _, _ := strings.Cut(s.Config.Host, ":")

	tlsConf := &tls.Config{}
	if host == "localhost" || host == "127.0.0.1" {
		tlsConf.InsecureSkipVerify = true
	}

	return &http.Client{
		Timeout: time.Second * 30,
		Transport: &http.Transport{
			TLSClientConfig: tlsConf,
		},
	}
}

// Request makes a single JSON request against the configured server. The request body may be nil
// for bodyless methods and the response pointer may be nil when the caller does not care about
// the response payload.
func (s *Harness) Request(method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		rawBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("could not serialize request: %w", err)
		}

		body = bytes.NewReader(rawBody)
	}

	req, err := http.NewRequest(method, fmt.Sprintf("https://%s%s", s.Config.Host, path), body)
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.Config.Token)

	resp, err := s.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("could not connect to server: %w", err)
	}
	defer resp.Body.Close()

	rawResp, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp.StatusCode, rawResp)
	}

	if respBody == nil {
		return nil
	}

	return json.Unmarshal(rawResp, respBody)
}

// Websocket opens a streaming connection against the configured server. Used for endpoints
// that push data over time, like container logs and the event feed. The caller owns the
// returned connection and must close it.
func (s *Harness) Websocket(path string) (*websocket.Conn, error) {
	host, _, _ := strings.Cut(s.Config.Host, ":")

	tlsConf := &tls.Config{}
	if host == "localhost" || host == "127.0.0.1" {
		tlsConf.InsecureSkipVerify = true
	}

	dialer := websocket.Dialer{
		TLSClientConfig:  tlsConf,
		HandshakeTimeout: time.Second * 30,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Config.Token)

	conn, resp, err := dialer.Dial(fmt.Sprintf("wss://%s%s", s.Config.Host, path), header)
	if err != nil {
		if resp != nil {
			rawResp, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr == nil && len(rawResp) > 0 {
				return nil, errorFromResponse(resp.StatusCode, rawResp)
			}
		}

		return nil, fmt.Errorf("could not connect to server: %w", err)
	}

	return conn, nil
}

// errorFromResponse pulls the human readable detail out of an API error payload.
func errorFromResponse(statusCode int, rawResp []byte) error {
	apiErr := struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}{}

	err := json.Unmarshal(rawResp, &apiErr)
	if err != nil || apiErr.Detail == "" {
		return fmt.Errorf("server returned status %d", statusCode)
	}

	return fmt.Errorf("%s", apiErr.Detail)
}

// Init harness for command line functions, used to provide different functionality during the life of a command line run.
func InitState(cmd *cobra.Command) {
	// Including these in the pre run hook instead of in the enclosing/parent command definition
	// allows cobra to still print errors and usage for its own cli verifications, but
	// ignore our errors.
	cmd.SilenceUsage = true  // Don't print the usage if we get an upstream error
	cmd.SilenceErrors = true // Let us handle error printing ourselves

	// Now we need to provide the command line with some state which we use to display the spinner
	// and also make sure the command line inherits the proper variable chain(config file -> envvar -> flags)
	State = &Harness{}

	// This is a hack. Because the start command needs to use the --config global variable for its own purposes
	// we tell it to skip parsing the as if its a CLI config and supply it with some defaults.
	if cmd.Name() == "start" && cmd.Parent().Name() == "service" {
		State.Config = &config.CLI{
			Format: "silent",
		}
	} else {
		config, _ := cmd.Flags().GetString("config")
		State.NewConfig(config)
	}

	// Initiate the formatter(this controls the command line output)
	format, _ := cmd.Flags().GetString("format")
	if format != "" {
		State.Config.Format = format
	}

	State.NewFormatter()

	overlayGlobalFlags(cmd)
}

// Flags are the last possible way to provide variables to the command line. For global variables we allow the user
// to specify them through envvars and configuration. Because of this we need to take whatever we have in the config
// from previous steps that retrieve them from those locations and then if the user has passed in a flag overwrite
// whatever those variables are.
func overlayGlobalFlags(cmd *cobra.Command) {
	// Now we include all other global flags into the config. Flags are always highest on the variable chain.
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor {
		color.NoColor = true // turn off color globally
		State.Config.NoColor = noColor
	}

	detail, _ := cmd.Flags().GetBool("detail")
	if detail {
		State.Config.Detail = detail
	}

	namespace, _ := cmd.Flags().GetString("namespace")
	if namespace != "" {
		State.Config.Namespace = namespace
	}

	host, _ := cmd.Flags().GetString("host")
	if host != "" {
		State.Config.Host = host
	}
}

func (s *Harness) NewFormatter() {
	clifmt, err := polyfmt.NewFormatter(polyfmt.Mode(s.Config.Format), polyfmt.DefaultOptions())
	if err != nil {
		log.Fatal(err)
	}

	s.Fmt = clifmt
}

func (s *Harness) NewConfig(configPath string) {
	config, err := config.InitCLIConfig(configPath, true)
	if err != nil {
		log.Fatal(err)
	}

	s.Config = config
	s.ConfigFilePath = configPath
}

// NamespaceOrDefault returns the namespace the user set on the command line or in config,
// falling back to the server default namespace.
func (s *Harness) NamespaceOrDefault() string {
	if s.Config.Namespace != "" {
		return s.Config.Namespace
	}

	return "default"
}

// WriteConfig takes the current representation of config and writes it to the file.
func (s *Harness) WriteConfig() error {
	if s.ConfigFilePath == "" {
		homeDir, _ := os.UserHomeDir()
		s.ConfigFilePath = fmt.Sprintf("%s/%s", homeDir, ".gofer.hcl")
	}

	f := hclwrite.NewEmptyFile()

	gohcl.EncodeIntoBody(s.Config, f.Body())

	err := os.WriteFile(s.ConfigFilePath, f.Bytes(), 0o644)
	if err != nil {
		return err
	}

	return nil
}
