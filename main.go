package main

import (
	"os"

	"github.com/dszqbsm/jobcrawler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
