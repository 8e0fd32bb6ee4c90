package main

import "github.com/orbit-labs/kbassist/cmd"

func main() {
	cmd.Execute()
}
