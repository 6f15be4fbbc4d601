package main

import "github.com/crystaldolphin/toolhub/cmd"

func main() {
	cmd.Execute()
}
