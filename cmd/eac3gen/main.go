package main

import (
	"flag"
	"fmt"

	"example.com/eac3fix/internal/common"
	"example.com/eac3fix/internal/samples"
)

func main() {
	outDir := flag.String("out", ".", "output directory for the generated sample stream")
	flag.Parse()

	path, err := samples.WriteFiles(*outDir)
	if err != nil {
		common.Fatalf("generate samples: %v", err)
	}

	fmt.Printf("wrote %s (%d frames)\n", path, len(samples.DefaultSpecs()))
}
