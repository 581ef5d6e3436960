package main

import (
	"github.com/wkalt/lakelet/cli/cmd"
)

func main() {
	cmd.Execute()
}
