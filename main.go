package main

import "huntzen-care/cmd"

func main() {
	cmd.Execute()
}
