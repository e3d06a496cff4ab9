package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/pavanmanishd/memkit/blockpool"
	"github.com/pavanmanishd/memkit/internal/workload"
)

func writeResults(w io.Writer, results []workload.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Scenario", "Allocations", "Failures", "Resets", "Peak slabs", "Arena used", "Elapsed"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	for _, r := range results {
		used := "-"
		if r.Arena != nil {
			used = fmt.Sprintf("%d/%d", r.Arena.SizeInUse, r.Arena.Capacity)
		}
		table.Append([]string{
			r.Scenario,
			strconv.Itoa(r.Allocations),
			strconv.Itoa(r.Failures),
			strconv.Itoa(r.Resets),
			strconv.Itoa(r.PeakSlabs),
			used,
			r.Elapsed.String(),
		})
	}
	table.Render()
}

func writePools(w io.Writer, pools []blockpool.PoolStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Pool", "Slabs", "Oversized", "Live", "Reserved bytes"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)
	for _, p := range pools {
		table.Append([]string{
			p.Name,
			strconv.Itoa(p.Slabs),
			strconv.Itoa(p.Oversized),
			strconv.Itoa(p.Live),
			strconv.Itoa(p.ReservedBytes),
		})
	}
	table.Render()
}
