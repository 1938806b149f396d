// Package main is the single-binary entrypoint for focusbot.
package main

import "github.com/focusgroup/focusbot/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
