package main

import "wildsats-api/internal/cli"

func main() {
	cli.Execute()
}
