package main

import "trafficsim/cmd"

func main() {
	cmd.Execute()
}
