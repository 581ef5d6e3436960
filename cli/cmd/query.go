package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/relvacode/iso8601"
	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/schema"
)

var (
	queryVersion int64
	queryAsOf    string
)

var queryCmd = &cobra.Command{
	Use:   "query [location]",
	Short: "Print table rows as JSON, optionally at a historical version",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			bailf("query requires a table location")
		}
		if queryVersion >= 0 && queryAsOf != "" {
			bailf("--version and --asof are mutually exclusive")
		}
		ctx := context.Background()
		tbl := openTable(args[0])
		var rows []schema.Row
		var err error
		switch {
		case queryVersion >= 0:
			rows, err = tbl.QueryAt(ctx, uint64(queryVersion))
		case queryAsOf != "":
			ts, terr := iso8601.ParseString(queryAsOf)
			if terr != nil {
				bailf("invalid --asof timestamp: %s", terr)
			}
			rows, err = tbl.QueryAsOf(ctx, ts)
		default:
			rows, err = tbl.Query(ctx)
		}
		checkErr(err)
		encoder := json.NewEncoder(os.Stdout)
		for _, row := range rows {
			checkErr(encoder.Encode(row))
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.PersistentFlags().Int64VarP(&queryVersion, "version", "v", -1, "Table version to read")
	queryCmd.PersistentFlags().StringVarP(&queryAsOf, "asof", "", "", "ISO 8601 timestamp to read as of")
}
