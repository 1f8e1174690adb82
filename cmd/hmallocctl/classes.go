package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/joshuapare/hmalloc/alloc"
	"github.com/joshuapare/hmalloc/internal/format"
)

var classesSizes []int

func init() {
	cmd := newClassesCmd()
	cmd.Flags().IntSliceVar(&classesSizes, "size", nil, "Show how the bucket strategy serves these request sizes")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "Show the bucket size classes",
		Long: `The classes command lists the eight power-of-two buckets of the bucket
strategy with their default page budget, or explains how given request sizes
are rounded.

Example:
  hmallocctl classes
  hmallocctl classes --size 40,8000
  hmallocctl classes --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(cmd.OutOrStdout(), classesSizes)
		},
	}
	return cmd
}

// ClassInfo describes one bucket.
type ClassInfo struct {
	Index        int `json:"index"`
	BlockSize    int `json:"block_size"`
	Usable       int `json:"usable"`
	CellsPerPage int `json:"cells_per_page"`
	InitPages    int `json:"init_pages"`
	InitCells    int `json:"init_cells"`
}

// Placement describes how one request size is served.
type Placement struct {
	Size      int  `json:"size"`
	BlockSize int  `json:"block_size"`
	Index     int  `json:"index"`
	Direct    bool `json:"direct"`
	Pages     int  `json:"pages,omitempty"`
}

func classTable() []ClassInfo {
	out := make([]ClassInfo, 0, alloc.NumClasses)
	for i, size := range alloc.ClassSizes() {
		pages := alloc.DefaultBucketConfig.InitPages[i]
		out = append(out, ClassInfo{
			Index:        i,
			BlockSize:    size,
			Usable:       size - format.HeaderSize,
			CellsPerPage: format.PageSize / size,
			InitPages:    pages,
			InitCells:    pages * format.PageSize / size,
		})
	}
	return out
}

func placements(sizes []int) ([]Placement, error) {
	out := make([]Placement, 0, len(sizes))
	for _, size := range sizes {
		if size < 0 {
			return nil, fmt.Errorf("--size must be >= 0, got %d", size)
		}
		block, idx, direct := alloc.ClassFor(size)
		p := Placement{Size: size, BlockSize: block, Index: idx, Direct: direct}
		if direct {
			p.Pages = format.PagesFor(block)
		}
		out = append(out, p)
	}
	return out, nil
}

// newTable returns a borderless table in the same layout for every command.
func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetColumnSeparator("")
	table.SetCenterSeparator("")
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

func runClasses(out io.Writer, sizes []int) error {
	if len(sizes) > 0 {
		ps, err := placements(sizes)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(out, ps)
		}
		table := newTable(out, "SIZE", "BLOCK", "BUCKET", "PAGES")
		for _, p := range ps {
			bucket := strconv.Itoa(p.Index)
			if p.Direct {
				bucket = "direct"
			}
			table.Append([]string{
				strconv.Itoa(p.Size), strconv.Itoa(p.BlockSize), bucket, strconv.Itoa(p.Pages),
			})
		}
		table.Render()
		return nil
	}

	classes := classTable()
	if jsonOut {
		return printJSON(out, classes)
	}
	table := newTable(out, "BUCKET", "BLOCK", "USABLE", "PER PAGE", "INIT PAGES", "INIT CELLS")
	for _, c := range classes {
		table.Append([]string{
			strconv.Itoa(c.Index),
			strconv.Itoa(c.BlockSize),
			strconv.Itoa(c.Usable),
			strconv.Itoa(c.CellsPerPage),
			strconv.Itoa(c.InitPages),
			strconv.Itoa(c.InitCells),
		})
	}
	table.Render()
	printInfo(out, "\nrequests above %d bytes are mapped directly in whole pages\n",
		alloc.ClassSizes()[alloc.NumClasses-1]-format.HeaderSize)
	return nil
}
