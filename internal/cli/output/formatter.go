// Package output formats CLI results as text, JSON, raw, or markdown, and
// renders tabular servers/skills listings. Grounded on the teacher's
// internal/cli/output.Formatter, retargeted from registry.Tool/MCPEntry
// onto catalog.CallableRecord/ServerInfo and gatekit's ClassifiedError.
package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/gatekit/gatekit/internal/catalog"
	"github.com/gatekit/gatekit/internal/cli/client"
	"github.com/gatekit/gatekit/internal/cli/errors"
)

// Format selects how a result renders.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatRaw      Format = "raw"
	FormatMarkdown Format = "markdown"
)

// Formatter renders CallResults, errors, and listings in one of Format's
// styles, with color gated by useColor (the commands pass !--json; no TTY
// detection is done).
type Formatter struct {
	format Format
	color  bool
}

// NewFormatter builds a Formatter.
func NewFormatter(format Format, useColor bool) *Formatter {
	return &Formatter{format: format, color: useColor}
}

// FormatResult renders one exec() CallResult.
func (f *Formatter) FormatResult(result *CallResult) string {
	switch f.format {
	case FormatJSON:
		s, _ := result.JSON()
		return s
	case FormatMarkdown:
		return result.Markdown()
	case FormatRaw:
		return result.Text("")
	default:
		if result.IsError() {
			if f.color {
				return color.RedString("Error: ") + result.Text("\n")
			}
			return "Error: " + result.Text("\n")
		}
		return result.Text("\n")
	}
}

// FormatError renders a classified CLI error.
func (f *Formatter) FormatError(err errors.ClassifiedError) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(err, "", "  ")
		return string(data)
	}

	if f.color {
		msg := color.RedString("Error [%s]: %s", err.Kind, err.Message)
		if err.Hint != "" {
			msg += "\n" + color.YellowString("Hint: %s", err.Hint)
		}
		return msg
	}
	msg := fmt.Sprintf("Error [%s]: %s", err.Kind, err.Message)
	if err.Hint != "" {
		msg += "\nHint: " + err.Hint
	}
	return msg
}

// FormatSearchMatches renders search()'s matches, one row per callable.
func (f *Formatter) FormatSearchMatches(matches []client.SearchMatchView) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(matches, "", "  ")
		return string(data)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Kind", "Name", "Description"}),
	)
	for _, m := range matches {
		table.Append([]string{m.ID, m.Kind, m.FQName, m.Description})
	}
	table.Render()
	return ""
}

// FormatServers renders the control surface's configured-upstream list.
func (f *Formatter) FormatServers(servers []*catalog.ServerInfo) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(servers, "", "  ")
		return string(data)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Alias", "Health", "Tools", "Last Refresh"}),
	)
	for _, s := range servers {
		table.Append([]string{s.Alias, string(s.Health), fmt.Sprintf("%d", s.ToolCount), s.LastRefresh.Format("2006-01-02 15:04:05")})
	}
	table.Render()
	return ""
}

// FormatSkills renders the registered skill list.
func (f *Formatter) FormatSkills(skills []*catalog.CallableRecord) string {
	if f.format == FormatJSON {
		data, _ := json.MarshalIndent(skills, "", "  ")
		return string(data)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"ID", "Name", "Description"}),
	)
	for _, s := range skills {
		table.Append([]string{string(s.ID), s.Name, s.Description})
	}
	table.Render()
	return ""
}
