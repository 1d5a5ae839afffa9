package service

import (
	"fmt"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/clintjedwards/gofer/internal/config"
	"github.com/spf13/cobra"
)

var cmdServicePrintEnv = &cobra.Command{
	Use:     "print-env",
	Short:   "Print all environment variables the server reads as configuration",
	Example: `$ gofer service print-env`,
	RunE:    servicePrintEnv,
}

func init() {
	CmdService.AddCommand(cmdServicePrintEnv)
}

func servicePrintEnv(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Finish()

	err := config.PrintAPIEnvs()
	if err != nil {
		return fmt.Errorf("could not print environment variables: %w", err)
	}

	return nil
}
