// The main package for the listings-scraper executable.
package main

import (
	"github.com/bolagsradar/listings-scraper/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
