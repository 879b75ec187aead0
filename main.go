package main

import "plannersync/cmd"

func main() {
	cmd.Run()
}
