package main

import "github.com/civichall/event-importer/internal/cli"

func main() {
	cli.Execute()
}
