// Package builtin contains the admin commands shipped with docstore.
package builtin

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/cmd"
	"github.com/mwantia/docstore/data"
)

// operator commands see everything
var allowAll acl.Policy = acl.AllowAll{}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// RegisterAll registers every builtin command. searcher may be nil when
// the full-text index is disabled.
func RegisterAll(m *cmd.Manager, searcher cmd.Searcher) error {
	for _, c := range []cmd.Command{
		&LsCommand{},
		&StatCommand{},
		&CatCommand{},
		&RmCommand{},
		&ReloadCommand{},
		&StatsCommand{},
		&SearchCommand{Searcher: searcher},
	} {
		if err := m.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func parseId(args *cmd.CommandArgs) (uuid.UUID, error) {
	raw, err := args.Arg(0, "id")
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id '%s': %w", raw, err)
	}
	return id, nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

// writeStates renders one row per file.
func writeStates(writer io.Writer, states []*data.FileState, language string) {
	t := newTable("ID", "TYPE", "PUBLISHER", "NAME", "MODIFIED")
	for _, state := range states {
		md := state.Metadata
		t.Row(
			md.Id.String(),
			md.Type.String(),
			orDash(md.Publisher),
			orDash(md.GetName(language)),
			humanize.Time(md.LastModified),
		)
	}
	fmt.Fprintln(writer, t.String())
}

func writeFacets(writer io.Writer, facets []data.Facet) {
	for _, facet := range facets {
		values := make([]string, 0, len(facet.Values))
		for value, count := range facet.Values {
			values = append(values, fmt.Sprintf("%s=%s", value, humanize.Comma(int64(count))))
		}
		slices.Sort(values)
		fmt.Fprintf(writer, "%s: %s\n", facet.Id, strings.Join(values, " "))
	}
}

func writeMetadata(writer io.Writer, md *data.FileMetadata, size *int) {
	t := newTable("FIELD", "VALUE")
	t.Row("id", md.Id.String())
	t.Row("type", md.Type.String())
	if md.ParentFile != nil {
		t.Row("parent", md.ParentFile.String())
	}
	t.Row("publisher", orDash(md.Publisher))
	t.Row("public", fmt.Sprint(md.IsPublic))
	t.Row("harvested", fmt.Sprint(md.IsHarvested))
	for _, language := range md.Languages() {
		t.Row("name."+language, md.Name[language])
	}

	keys := make([]string, 0, len(md.AdditionalValues))
	for key := range md.AdditionalValues {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		t.Row(key, strings.Join(md.AdditionalValues[key], ", "))
	}

	t.Row("created", md.Created.Format(time.RFC3339))
	t.Row("modified", fmt.Sprintf("%s (%s)", md.LastModified.Format(time.RFC3339), humanize.Time(md.LastModified)))
	if size != nil {
		t.Row("size", humanize.Bytes(uint64(*size)))
	}
	fmt.Fprintln(writer, t.String())
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
