package main

import "github.com/derickschaefer/atmosight/cmd"

func main() {
	cmd.Execute()
}
