package main

import "github.com/moyu-x/mql-organizer/cmd"

func main() {
	cmd.Execute()
}
