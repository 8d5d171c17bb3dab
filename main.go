package main

import "github.com/circa10a/countdown/cmd"

func main() {
	cmd.Execute()
}
