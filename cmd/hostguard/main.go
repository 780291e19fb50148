package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gzhole/hostguard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		var ee *cli.ExitError
		if !errors.As(err, &ee) {
			fmt.Fprintf(os.Stderr, "hostguard: %v\n", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}
