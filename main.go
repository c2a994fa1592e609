package main

import (
	"os"

	"github.com/tanpawarit/Breeze-CRM-Copilot/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:]))
}
