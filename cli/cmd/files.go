package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/util"
)

var filesCmd = &cobra.Command{
	Use:   "files [location]",
	Short: "List the live data files of a table",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			bailf("files requires a table location")
		}
		ctx := context.Background()
		snap, err := openTable(args[0]).Snapshot(ctx)
		checkErr(err)
		for _, file := range snap.Files {
			modified := time.UnixMilli(file.ModificationTime).Format(time.RFC3339)
			fmt.Printf("%s  %8s  %6d rows  %s\n",
				modified, util.HumanBytes(uint64(file.Size)), file.RowCount, file.Path)
		}
	},
}

func init() {
	rootCmd.AddCommand(filesCmd)
}
