package main

import (
	"github.com/fluxstats/fluxstats/pkg/cli"
)

func main() {
	cli.Execute()
}
