package main

import "github.com/eventlens/eventlens/cmd"

func main() {
	cmd.Execute()
}
