// Package ui renders command output for the recordkit CLI.
package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table renders rows under bold headers, columns padded to the widest cell
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a new table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{
		writer:  w,
		headers: headers,
		noColor: noColor,
	}
}

// AddRow adds a row. Missing cells render empty; extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = width(header)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			if w := width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	head := t.style(color.Bold, color.FgCyan)
	rule := t.style(color.FgHiBlack)

	cells := make([]string, len(t.headers))
	for i, header := range t.headers {
		cells[i] = head.Sprint(padRight(header, widths[i]))
	}
	fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))

	for i, w := range widths {
		cells[i] = rule.Sprint(strings.Repeat("─", w))
	}
	fmt.Fprintln(t.writer, strings.Join(cells, "  "))

	for _, row := range t.rows {
		for i, cell := range row {
			cells[i] = padRight(cell, widths[i])
		}
		fmt.Fprintln(t.writer, strings.TrimRight(strings.Join(cells, "  "), " "))
	}
}

func (t *Table) style(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if t.noColor {
		c.DisableColor()
	}
	return c
}

// KeyValueTable renders aligned "key: value" lines
type KeyValueTable struct {
	writer  io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewKeyValueTable creates a new key-value table
func NewKeyValueTable(w io.Writer, noColor bool) *KeyValueTable {
	return &KeyValueTable{writer: w, noColor: noColor}
}

// AddRow adds a key-value pair
func (t *KeyValueTable) AddRow(key, value string) {
	t.keys = append(t.keys, key)
	t.values = append(t.values, value)
}

// Render writes the pairs
func (t *KeyValueTable) Render() {
	keyWidth := 0
	for _, k := range t.keys {
		if w := width(k); w > keyWidth {
			keyWidth = w
		}
	}

	cyan := color.New(color.FgCyan)
	if t.noColor {
		cyan.DisableColor()
	}
	for i, k := range t.keys {
		cyan.Fprint(t.writer, padRight(k+":", keyWidth+1))
		fmt.Fprintf(t.writer, " %s\n", t.values[i])
	}
}

func width(s string) int {
	return utf8.RuneCountInString(s)
}

func padRight(s string, n int) string {
	if w := width(s); w < n {
		return s + strings.Repeat(" ", n-w)
	}
	return s
}
