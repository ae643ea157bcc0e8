package main

import (
	"os"

	lettaragcmder "github.com/H0NEYP0T-466/lettaXrag/cmd/lettarag"
)

func main() {
	cmd := lettaragcmder.NewLettaragCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
