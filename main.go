package main

import "mongotable/cmd"

func main() {
	cmd.Execute()
}
