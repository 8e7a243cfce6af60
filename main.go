// The main package for the news-crawler executable.
package main

import (
	"os"

	"github.com/JakeFAU/news-crawler/cmd"
)

// main defers all execution to the Cobra CLI and exits with its code.
func main() {
	os.Exit(cmd.Execute())
}
