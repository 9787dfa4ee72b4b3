package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableView is a rounded table with optionally right-aligned columns.
type tableView struct {
	headers []string
	rows    [][]string
	right   map[int]bool
}

func newTableView(headers ...string) *tableView {
	return &tableView{headers: headers, right: map[int]bool{}}
}

func (v *tableView) alignRight(columns ...int) *tableView {
	for _, c := range columns {
		v.right[c] = true
	}
	return v
}

func (v *tableView) add(cells ...string) {
	v.rows = append(v.rows, cells)
}

func (v *tableView) render() string {
	if len(v.headers) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(v.headers))
	for i, h := range v.headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, cells := range v.rows {
		row := make(table.Row, len(v.headers))
		for i := range row {
			if i < len(cells) {
				row[i] = cells[i]
			} else {
				row[i] = ""
			}
		}
		tw.AppendRow(row)
	}

	configs := make([]table.ColumnConfig, 0, len(v.headers))
	for i := range v.headers {
		align := text.AlignLeft
		if v.right[i] {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}
