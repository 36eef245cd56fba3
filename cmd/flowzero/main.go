package main

import "flowzero/internal/cli"

func main() {
	cli.Execute()
}
