// Command sensord collects sensor readings pushed over TCP, stores them in
// SQLite, and shows them on a character display browsed with two buttons.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sensord/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
