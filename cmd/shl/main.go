package main

import "github.com/information-sharing-networks/shl-demo/internal/cli"

func main() {
	cli.Execute()
}
