package main

import "deepdefender/cmd"

func main() {
	cmd.Execute()
}
