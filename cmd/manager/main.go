package main

import (
	"os"

	"content-empire/manager-go/internal/cli"
)

func main() {
	os.Exit(cli.Run(os.Args))
}
