package main

import (
	"os"

	"github.com/uadcheck/uadcheck/cli"
)

func main() {
	os.Exit(cli.Execute())
}
