package main

import "github.com/nimogit/beacon/cmd"

func main() {
	cmd.Execute()
}
