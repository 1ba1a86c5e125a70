package main

import "github.com/canopy-network/votechain/cmd/cli"

func main() {
	cli.Execute()
}
