package main

import "github.com/markdave123-py/coursemate/internal/cli"

func main() {
	cli.Execute()
}
