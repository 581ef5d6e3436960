package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/util"
)

var detailCmd = &cobra.Command{
	Use:   "detail [location]",
	Short: "Show table-level metadata",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			bailf("detail requires a table location")
		}
		ctx := context.Background()
		detail, err := openTable(args[0]).DescribeDetail(ctx)
		checkErr(err)
		label := color.New(color.FgCyan)
		rows := []struct {
			name  string
			value string
		}{
			{"location", args[0]},
			{"format", detail.Format},
			{"id", detail.ID},
			{"version", fmt.Sprintf("%d", detail.Version)},
			{"created", detail.CreatedAt.Format(time.RFC3339)},
			{"last modified", detail.LastModified.Format(time.RFC3339)},
			{"files", fmt.Sprintf("%d", detail.NumFiles)},
			{"size", util.HumanBytes(uint64(detail.SizeInBytes))},
		}
		for _, row := range rows {
			fmt.Printf("%s %s\n", label.Sprintf("%-14s", row.name), row.value)
		}
	},
}

func init() {
	rootCmd.AddCommand(detailCmd)
}
