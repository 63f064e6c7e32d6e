package main

import "cratedig/cmd"

func main() {
	cmd.Execute()
}
