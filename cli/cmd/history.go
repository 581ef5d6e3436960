package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/lakelet/txlog"
)

var opColors = map[txlog.Operation]*color.Color{
	txlog.OpCreate:       color.New(color.FgGreen),
	txlog.OpInsert:       color.New(color.FgCyan),
	txlog.OpUpdate:       color.New(color.FgYellow),
	txlog.OpDelete:       color.New(color.FgRed),
	txlog.OpSchemaChange: color.New(color.FgMagenta),
}

func opColor(op txlog.Operation) *color.Color {
	if c, ok := opColors[op]; ok {
		return c
	}
	return color.New(color.FgWhite)
}

var historyCmd = &cobra.Command{
	Use:   "history [location]",
	Short: "Show the commit history of a table",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			bailf("history requires a table location")
		}
		ctx := context.Background()
		history, err := openTable(args[0]).DescribeHistory(ctx)
		checkErr(err)
		for _, commit := range history {
			fmt.Printf("%6d  %s  %-10s %-13s",
				commit.Version,
				commit.Timestamp.Format(time.RFC3339),
				commit.User,
				opColor(commit.Operation).Sprint(commit.Operation),
			)
			for _, key := range []string{"predicate", "set"} {
				if value, ok := commit.OperationParameters[key]; ok {
					fmt.Printf("  %s=%s", key, value)
				}
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
