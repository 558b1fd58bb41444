// The main package for the websearch executable.
package main

import (
	"github.com/JakeFAU/websearch/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
