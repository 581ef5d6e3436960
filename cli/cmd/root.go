package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/storage"
	"github.com/wkalt/lakelet/table"
)

var rootCmd = &cobra.Command{
	Use:   "lakelet",
	Short: "lakelet transactional table storage",
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func bailf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func checkErr(err error) {
	if err != nil {
		bailf("error: %v", err)
	}
}

// openTable opens a table engine over a directory store rooted at the
// location's parent directory, so engine errors name the table.
func openTable(location string) *table.Table {
	if _, err := os.Stat(location); err != nil {
		bailf("error: no table at %s", location)
	}
	cleaned := filepath.Clean(location)
	store, err := storage.NewDirectoryStore(filepath.Dir(cleaned))
	checkErr(err)
	return table.New(store, filepath.Base(cleaned))
}
