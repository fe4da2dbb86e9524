// Command studentgrades runs the student and grade records service.
package main

import (
	"fmt"
	"os"

	"github.com/studentgrades/studentgrades-api/internal/interface/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}
