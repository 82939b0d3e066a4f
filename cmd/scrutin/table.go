package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"scrutin/internal/tally"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// alertf prints a highlighted line, in color on terminals.
func alertf(out io.Writer, format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if shouldColorize(out) {
		line = text.Colors{text.FgYellow, text.Bold}.Sprint(line)
	}
	fmt.Fprintln(out, line)
}

func printFlags(out io.Writer, flags []tally.Flag) {
	if len(flags) == 0 {
		return
	}
	fmt.Fprintf(out, "\n%d reconciliation flag(s):\n", len(flags))
	for _, f := range flags {
		alertf(out, "  ! %s", f)
	}
}

func formatCount(v int64) string { return strconv.FormatInt(v, 10) }

func formatPct(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) + "%" }
