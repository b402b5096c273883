// The main package for the screener executable.
package main

import "github.com/JakeFAU/batch-screener/cmd"

func main() {
	cmd.Execute()
}
