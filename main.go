package main

import "github.com/mkurti/postchat/cmd"

func main() {
	cmd.Execute()
}
