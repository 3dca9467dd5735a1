package main

import "github.com/Digital-Shane/sort-me-down/internal/cmd"

func main() {
	cmd.Execute()
}
