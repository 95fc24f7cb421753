package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "vocabmatch"}

	root.AddCommand(serveCMD(), migrateCMD(), seedCMD(), analyzeCMD(), recommendCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
