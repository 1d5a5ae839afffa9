package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/clintjedwards/gofer/internal/cli/cl"
	"github.com/spf13/cobra"
)

var cmdServiceInfo = &cobra.Command{
	Use:     "info",
	Short:   "Describe the version and current workloads of the Gofer service",
	Example: `$ gofer service info`,
	RunE:    serviceInfo,
}

func init() {
	CmdService.AddCommand(cmdServiceInfo)
}

func serviceInfo(_ *cobra.Command, _ []string) error {
	cl.State.Fmt.Print("Retrieving service info")

	info := struct {
		Commit string `json:"commit"`
		Semver string `json:"semver"`
	}{}

	err := cl.State.Request(http.MethodGet, "/api/system/info", nil, &info)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get service info: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	summary := struct {
		Namespaces    []string `json:"namespaces"`
		PipelineCount int      `json:"pipeline_count"`
	}{}

	err = cl.State.Request(http.MethodGet, "/api/system/summary", nil, &summary)
	if err != nil {
		cl.State.Fmt.PrintErr(fmt.Sprintf("could not get service summary: %v", err))
		cl.State.Fmt.Finish()
		return err
	}

	cl.State.Fmt.Println(fmt.Sprintf("Gofer %s [%s]\n  Namespaces: %s\n  Pipelines: %d",
		info.Semver, info.Commit, strings.Join(summary.Namespaces, ", "), summary.PipelineCount))
	cl.State.Fmt.Finish()
	return nil
}
