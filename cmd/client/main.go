package main

import "pharmasync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
