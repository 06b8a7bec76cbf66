package main

import (
	"github.com/pkgforge/pkgforge/cmd/pkgforge/commands"
)

func main() {
	commands.Execute()
}
