package main

import (
	"os"

	"pdfshrink/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
