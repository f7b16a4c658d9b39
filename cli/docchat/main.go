package main

import (
	"os"

	docchatcmder "github.com/papercomputeco/docchat/cmd/docchat"
)

func main() {
	cmd := docchatcmder.NewDocchatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
