// # cmd/microscope/main.go
package main

import (
	"microscope/internal/ui/cli"
	"os"
)

func main() {
	os.Exit(cli.Execute())
}
