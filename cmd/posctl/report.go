package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/kiwari-pos/tabs/internal/database"
	"github.com/kiwari-pos/tabs/internal/service"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	return table
}

// renderStock prints on-hand levels, flagging products at or below low.
func renderStock(w io.Writer, levels []database.ListStockLevelsRow, low int32) {
	table := newTable(w, []string{"Product", "Station", "On hand", ""})
	for _, l := range levels {
		flag := ""
		if l.QuantityOnHand <= low {
			flag = "LOW"
		}
		table.Append([]string{l.Name, l.Destination, strconv.Itoa(int(l.QuantityOnHand)), flag})
	}
	table.Render()
	fmt.Fprintf(w, "(%d tracked products)\n", len(levels))
}

// renderDrifts prints cached totals that disagree with their source.
func renderDrifts(w io.Writer, drifts []service.Drift) {
	if len(drifts) == 0 {
		fmt.Fprintln(w, "All order and tab totals are consistent.")
		return
	}
	table := newTable(w, []string{"Kind", "Ref", "ID", "Stored", "Computed"})
	for _, d := range drifts {
		table.Append([]string{d.Kind, d.Label, d.ID.String(), d.Stored.StringFixed(2), d.Computed.StringFixed(2)})
	}
	table.Render()
	fmt.Fprintf(w, "(%d drifted)\n", len(drifts))
}
