package main

import "checkout/internal/cli"

func main() {
	cli.Execute()
}
