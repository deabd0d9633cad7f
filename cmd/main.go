package main

import (
	cmd "github.com/kerbaras/onepiece-offline/cmd/opoffline"
)

func main() {
	cmd.Execute()
}
