package main

import "github.com/evobridge/evobridge/cmd"

func main() {
	cmd.Execute()
}
