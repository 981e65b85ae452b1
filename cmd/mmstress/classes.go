package main

import (
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pavanmanishd/mmalloc"
)

var classesBlockSize int

func init() {
	cmd := newClassesCmd()
	cmd.Flags().IntVar(&classesBlockSize, "block-size", 0, "Small-object block size in bytes (0 = page size)")
	rootCmd.AddCommand(cmd)
}

func newClassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classes",
		Short: "Print the small size-class table",
		Long: `The classes command prints every size class served from shared
blocks: its payload, slot width and how many slots one block holds. Requests
above the last class get a dedicated mapping.

Example:
  mmstress classes
  mmstress classes --block-size 65536 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClasses(cmd.OutOrStdout(), classesBlockSize)
		},
	}
}

func runClasses(w io.Writer, blockSize int) error {
	h, err := mmalloc.New(mmalloc.Config{BlockSize: blockSize})
	if err != nil {
		return err
	}
	classes := h.Classes()
	if jsonOut {
		return printJSON(w, classes)
	}

	rows := make([][]string, 0, len(classes))
	for _, c := range classes {
		waste := h.BlockSize() - c.PerBlock*int(c.Width)
		rows = append(rows, []string{
			strconv.Itoa(c.Index),
			humanize.IBytes(uint64(c.Payload)),
			strconv.Itoa(int(c.Width)),
			strconv.Itoa(c.PerBlock),
			humanize.IBytes(uint64(waste)),
		})
	}
	printTable(w, []string{"Class", "Payload", "Width", "Per block", "Block tail"}, rows)
	return nil
}
