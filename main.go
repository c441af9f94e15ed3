package main

import (
	"os"

	"github.com/wiktor-jurek/stewthius/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
