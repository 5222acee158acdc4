package main

import "aria/internal/cli"

func main() {
	cli.Execute()
}
