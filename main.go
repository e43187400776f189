package main

import "tourdesk/cmd"

func main() {
	cmd.Execute()
}
