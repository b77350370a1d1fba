// ./main.go
package main

import (
	"github.com/xkilldash9x/souper/cmd"
)

// main is the entry point for the souper CLI.
func main() {
	cmd.Execute()
}
