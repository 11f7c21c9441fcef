package main

import "otterdog/internal/cmd"

func main() {
	cmd.Execute()
}
