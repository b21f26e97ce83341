package cmdfmt

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/viper"
	"github.com/thinkparq/devicemapper-go/ctl/pkg/config"
)

// Printf is like fmt.Printf except it prints to stderr instead of stdout. It is intended to be used
// from commands that print structured output using a table or JSON that may be parsed by scripts.
func Printf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format, a...)
}

// Printer is a condensed version of table.Writer that allows implementing alternative ways besides
// tables to write out structured data.
type Printer interface {
	AppendRow(row table.Row, configs ...table.RowConfig)
	Render() string
	SetColumnConfigs(configs []table.ColumnConfig)
}

// Printomatic provides a standard way for printing structured data.
type Printomatic struct {
	printer    Printer
	columns    []string
	printCols  []string
	pageSize   uint
	outputType config.OutputType
	rowCount   uint
}

// Creates a new Printer for printing structured data either in a tabular or JSON format. Reads
// certain Viper configuration keys to control how output is printed:
//
//   - PageSizeKey: Configure how many entries are buffered then printed at once.
//   - ColumnsKey: Define what columns/keys are printed.
//   - OutputKey: Print a table, JSON, pretty JSON or NDJSON.
//
// The available columns (or keys for JSON) must be provided using the columns parameter, and will
// be used to generate the table header. When adding rows call Printomatic.AddItem() providing as
// many columns as were initially provided. Use defaultColumns to define which columns are printed
// by default. Column names should always be lowercase. As a special case, if a user specifies
// "ColumnsKey=all" then all columns are printed.
func NewPrintomatic(columns []string, defaultColumns []string) Printomatic {
	// Determine the columns to be printed
	printCols := defaultColumns
	if viper.IsSet(config.ColumnsKey) {
		printCols = viper.GetStringSlice(config.ColumnsKey)
	}

	// Determine the page size and output type:
	pageSize := viper.GetUint(config.PageSizeKey)
	outputType := config.OutputType(viper.GetString(config.OutputKey))

	if outputType == config.OutputNDJSON {
		// If NDJSON is requested automatically set the pageSize to zero.
		pageSize = 0
	} else if outputType == config.OutputJSON && pageSize == 0 {
		// If the output type is JSON and the pageSize is zero, automatically use NDJSON.
		outputType = config.OutputNDJSON
	}

	for i := range columns {
		columns[i] = strings.ReplaceAll(columns[i], " ", "_")
	}
	for i := range printCols {
		printCols[i] = strings.ReplaceAll(printCols[i], " ", "_")
	}

	p := Printomatic{
		columns:    columns,
		printCols:  printCols,
		pageSize:   pageSize,
		outputType: outputType,
	}

	p.replacePrinter()

	return p
}

// replacePrinter() refreshes the internal Printer to prepare printing a new page of output. It is
// used both to initialize the Printomatic and whenever pageSize is exceeded.
func (p *Printomatic) replacePrinter() {

	if p.outputType == config.OutputJSON ||
		p.outputType == config.OutputJSONPretty ||
		p.outputType == config.OutputNDJSON {
		p.printer = newJSONPrinter(p.outputType == config.OutputJSONPretty, p.pageSize)
	} else {
		// Otherwise print using a stylized table. Use a very simple style with only spaces as
		// separators to make parsing easier.
		tbl := table.NewWriter()
		tbl.SetStyle(table.Style{
			Box: table.BoxStyle{
				PaddingRight:  "  ",
				PageSeparator: "\n",
			},
			Format: table.FormatOptions{
				Footer: text.FormatUpper,
				Header: text.FormatUpper,
			},
		})

		// Don't print a header if the page size is zero:
		if p.pageSize > 0 {
			// Build the header
			row := table.Row{}
			for _, h := range p.columns {
				row = append(row, strings.ToLower(h))
			}
			tbl.AppendHeader(row)
		}
		p.printer = tbl
	}

	// Regardless the printer type, users can control the columns:
	colCfg := []table.ColumnConfig{}

	// Hide all columns not to be printed
	for i, name := range p.columns {
		// The column number is used here because Name does not work if there is no header (as is
		// the case when pageSize=0). The ColumnConfig also recommends using this instead of name.
		// The name is still included here because it is required when printing JSON.
		colCfg = append(colCfg, table.ColumnConfig{Number: i + 1, Hidden: true, Name: name, Align: text.AlignLeft, AlignHeader: text.AlignLeft})
		for _, cName := range p.printCols {
			if cName == name || cName == "all" {
				colCfg[len(colCfg)-1].Hidden = false
				break
			}
		}
	}

	p.printer.SetColumnConfigs(colCfg)
}

// Add an item to the Printomatic. Auto prints output when pageSize rows have been added. If the
// pageSize is zero the output is always immediately printed.
func (p *Printomatic) AddItem(fields ...any) {
	p.printer.AppendRow(fields)
	p.rowCount += 1
	if p.pageSize == 0 {
		fmt.Println(p.printer.Render())
		// Intentionally don't print a blank line between rows when the page size is zero.
		p.replacePrinter()
	} else if p.rowCount%p.pageSize == 0 {
		fmt.Println(p.printer.Render())
		fmt.Println()
		p.replacePrinter()
	}
}

// Print all remaining items in the Printomatic even if pageSize has not yet been reached. This
// should always be called after adding all items to ensure everything is printed.
func (w *Printomatic) PrintRemaining() {
	// If the page size is zero rows are printed as they were added so there are no remaining rows.
	if w.pageSize != 0 && w.rowCount%w.pageSize != 0 {
		fmt.Println(w.printer.Render())
		fmt.Println()
		w.replacePrinter()
	}
}
