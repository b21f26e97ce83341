package cmdfmt

import (
	"encoding/json"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// jsonPrinter satisfies Printer so the Printomatic can emit JSON instead of a table. Rows are
// collected as maps keyed by the visible column names; hidden columns are left out entirely so
// --columns shapes JSON output the same way it shapes tables. With pageSize 0 each Render() call
// covers exactly one row, which yields NDJSON.
type jsonPrinter struct {
	columns  []table.ColumnConfig
	rows     []map[string]any
	pretty   bool
	pageSize uint
}

func newJSONPrinter(pretty bool, pageSize uint) *jsonPrinter {
	return &jsonPrinter{
		rows:     make([]map[string]any, 0, 1),
		pretty:   pretty,
		pageSize: pageSize,
	}
}

func (p *jsonPrinter) SetColumnConfigs(configs []table.ColumnConfig) {
	p.columns = configs
}

func (p *jsonPrinter) AppendRow(row table.Row, configs ...table.RowConfig) {
	if len(p.columns) != len(row) {
		panic(fmt.Sprintf("dmctl bug: row with %d values appended to a printer with %d columns", len(row), len(p.columns)))
	}

	item := make(map[string]any, len(p.columns))
	for i, col := range p.columns {
		if col.Hidden {
			continue
		}
		item[col.Name] = row[i]
	}
	p.rows = append(p.rows, item)
}

func (p *jsonPrinter) Render() string {
	var data any
	if p.pageSize == 0 {
		if len(p.rows) != 1 {
			panic(fmt.Sprintf("dmctl bug: ndjson render called with %d buffered rows instead of exactly one", len(p.rows)))
		}
		data = p.rows[0]
	} else {
		data = p.rows
	}

	var out []byte
	var err error
	if p.pretty {
		out, err = json.MarshalIndent(data, "", " ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		panic("dmctl bug: marshalling printer rows to json failed: " + err.Error())
	}
	return string(out)
}
