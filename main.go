// Command roomwatch scrapes the WOKO Zurich room board once per invocation.
package main

import (
	"os"

	"github.com/JakeFAU/roomwatch/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
