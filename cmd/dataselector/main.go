// Command dataselector runs selections against a spatial database and
// exports the results.
package main

import (
	"fmt"
	"os"

	"github.com/LERCAutomation/DataSelector-ArcPro-sub000/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
