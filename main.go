package main

import "github.com/wormhole-foundation/wormhole/core/cmd"

func main() {
	cmd.Execute()
}
