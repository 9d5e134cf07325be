// pythautom - LLM-driven Python project automation

package main

import (
	"os"

	"github.com/pythautom/pythautom/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
