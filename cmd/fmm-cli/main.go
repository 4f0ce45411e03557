package main

import "github.com/fmm-go/fmmcore/cmd/fmm-cli/cmd"

func main() {
	cmd.Execute()
}
