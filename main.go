package main

import "deck-sync/cmd"

func main() {
	cmd.Execute()
}
