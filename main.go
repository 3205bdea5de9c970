package main

import "github.com/theirongolddev/burnclock/cmd"

func main() {
	cmd.Execute()
}
