package main

import "github.com/LeJamon/xrplhist/internal/cli"

func main() {
	cli.Execute()
}
