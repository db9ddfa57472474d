package main

import "github.com/depthcast/depthcast/cmd/depthcast/commands"

func main() {
	commands.Execute()
}
