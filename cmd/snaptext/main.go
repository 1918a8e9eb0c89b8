// Command snaptext recognizes text in images and keeps a local history.
package main

import (
	"os"

	"github.com/roach88/snaptext/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
