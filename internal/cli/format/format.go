// Package format contains helpers for presenting API objects on the command line.
package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnixMilli returns a humanized version of time given in unix millisecond. The zeroMsg is the string returned when
// the time is 0 and assumed to be not set.
func UnixMilli(unix uint64, zeroMsg string, detail bool) string {
	if unix == 0 {
		return zeroMsg
	}

	if !detail {
		return humanize.Time(time.UnixMilli(int64(unix)))
	}

	relativeTime := humanize.Time(time.UnixMilli(int64(unix)))
	realTime := time.UnixMilli(int64(unix)).Format(time.RFC850)
	return fmt.Sprintf("%s (%s)", realTime, relativeTime)
}

// Duration returns a humanized duration time for two epoch milli second times.
func Duration(start, end uint64) string {
	if start == 0 {
		return "0s"
	}

	startTime := time.UnixMilli(int64(start))
	endTime := time.Now()

	if end != 0 {
		endTime = time.UnixMilli(int64(end))
	}

	duration := endTime.Sub(startTime)

	truncate := time.Second
	if duration < time.Second {
		truncate = time.Millisecond
	}

	return duration.Truncate(truncate).String()
}

// NormalizeEnumValue turns SCREAMING_SNAKE enum values into humanized title case. The unknownMsg
// is substituted when the value is empty or unknown.
func NormalizeEnumValue(value, unknownMsg string) string {
	if value == "" || strings.EqualFold(value, "unknown") {
		return unknownMsg
	}

	toTitle := cases.Title(language.AmericanEnglish)
	toLower := cases.Lower(language.AmericanEnglish)
	return toTitle.String(toLower.String(value))
}

func ColorizeRunState(state string) string {
	switch strings.ToLower(state) {
	case "pending", "running":
		return color.YellowString(state)
	case "complete":
		return color.GreenString(state)
	default:
		return state
	}
}

func ColorizeRunStatus(status string) string {
	switch strings.ToLower(status) {
	case "successful":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "cancelled":
		return color.YellowString(status)
	default:
		return status
	}
}

func ColorizeTaskExecutionState(state string) string {
	switch strings.ToLower(state) {
	case "processing", "waiting", "running":
		return color.YellowString(state)
	case "complete":
		return color.GreenString(state)
	default:
		return state
	}
}

func ColorizeTaskExecutionStatus(status string) string {
	switch strings.ToLower(status) {
	case "successful":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "cancelled", "skipped":
		return color.YellowString(status)
	default:
		return status
	}
}

func ColorizePipelineState(state string) string {
	switch strings.ToLower(state) {
	case "active":
		return color.GreenString(state)
	case "disabled":
		return color.YellowString(state)
	default:
		return state
	}
}

func ColorizeExtensionState(state string) string {
	switch strings.ToLower(state) {
	case "processing":
		return color.YellowString(state)
	case "running":
		return color.GreenString(state)
	case "exited":
		return color.RedString(state)
	default:
		return state
	}
}

// Table renders data as a compact left-aligned table. Colorization only applies to headers;
// callers colorize individual cells themselves.
func Table(headers []string, data [][]string, useColor bool) string {
	tableString := &strings.Builder{}
	table := tablewriter.NewWriter(tableString)

	table.SetHeader(headers)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(true)
	table.SetBorder(false)
	table.SetAutoFormatHeaders(false)
	table.SetRowLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")

	if useColor {
		headerColors := []tablewriter.Colors{}
		for range headers {
			headerColors = append(headerColors, tablewriter.Color(tablewriter.FgBlueColor))
		}
		table.SetHeaderColor(headerColors...)
	}

	table.AppendBulk(data)

	table.Render()
	return tableString.String()
}
