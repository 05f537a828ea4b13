package main

import "github.com/swzo/brassworks-updater/cmd/brassworks-updater/cmd"

func main() {
	cmd.Execute()
}
