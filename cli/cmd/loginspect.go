package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/txlog"
)

var loginspectCmd = &cobra.Command{
	Use:   "loginspect [location] [version]",
	Short: "Dump the raw transaction log record for a version",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 2 {
			bailf("loginspect requires a table location and a version")
		}
		version, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			bailf("invalid version: %s", args[1])
		}
		if _, err := os.Stat(args[0]); err != nil {
			bailf("error: no table at %s", args[0])
		}
		cleaned := filepath.Clean(args[0])
		store, err := storage.NewDirectoryStore(filepath.Dir(cleaned))
		checkErr(err)
		ctx := context.Background()
		data, err := txlog.New(store, filepath.Base(cleaned)).ReadRaw(ctx, version)
		checkErr(err)
		fmt.Print(string(data))
	},
}

func init() {
	rootCmd.AddCommand(loginspectCmd)
}
