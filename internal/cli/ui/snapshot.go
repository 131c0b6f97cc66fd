package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/conduit-lang/recordkit/internal/orm/migrate"
)

// RenderSnapshot prints the live columns of a table in ordinal order
func RenderSnapshot(w io.Writer, snap *migrate.SchemaSnapshot, noColor bool) {
	title := color.New(color.Bold, color.FgCyan)
	if noColor {
		title.DisableColor()
	}

	if !snap.Exists() {
		warn := color.New(color.FgYellow)
		if noColor {
			warn.DisableColor()
		}
		warn.Fprintf(w, "table %s does not exist\n", snap.Table)
		return
	}

	title.Fprintf(w, "%s (%d columns)\n", snap.Table, len(snap.Order))
	fmt.Fprintln(w)

	table := NewTable(w, noColor, "#", "COLUMN", "TYPE")
	for i, name := range snap.Order {
		table.AddRow(fmt.Sprint(i+1), name, snap.Type(name))
	}
	table.Render()
}
