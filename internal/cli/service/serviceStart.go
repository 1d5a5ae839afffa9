package service

import (
	"os"

	"github.com/clintjedwards/gofer/internal/app"
	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var cmdServiceStart = &cobra.Command{
	Use:   "start",
	Short: "Start the Gofer HTTP server",
	Long: `Start the Gofer HTTP server.

Running this command attempts to start the long running service. This command will block and only gracefully
stop on SIGINT or SIGTERM signals.

The service accepts configuration through a config file, environment variables, or both. Run
'gofer service print-env' for a list of supported environment variables.`,
	RunE: serverStart,
}

func init() {
	cmdServiceStart.Flags().BoolP("dev-mode", "d", false, "Alters several feature flags such that development is easy. "+
		"This is not to be used in production and may turn off features that are useful for even development like authentication")
	CmdService.AddCommand(cmdServiceStart)
}

func serverStart(cmd *cobra.Command, _ []string) error {
	cl.State.Fmt.Finish()

	configPath, _ := cmd.Flags().GetString("config")
	devMode, _ := cmd.Flags().GetBool("dev-mode")

	conf, err := config.InitAPIConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("error in config initialization")
	}

	if devMode {
		conf.DevMode = true
	}

	setupLogging(conf.LogLevel, conf.DevMode)
	app.StartServices(conf)

	return nil
}

func setupLogging(loglevel string, pretty bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.With().Caller().Logger()
	zerolog.SetGlobalLevel(parseLogLevel(loglevel))
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func parseLogLevel(loglevel string) zerolog.Level {
	switch loglevel {
	case "panic":
		return zerolog.PanicLevel
	case "fatal":
		return zerolog.FatalLevel
	case "error":
		return zerolog.ErrorLevel
	case "warn":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	default:
		log.Error().Msgf("loglevel %s not recognized; defaulting to debug", loglevel)
		return zerolog.DebugLevel
	}
}
