// Command schema writes the JSON schema of every query payload to a directory.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gravitas-games/hexnav/internal/network"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "directory to write the JSON schemas into")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("schema: create output dir: %v", err)
	}

	for _, msgType := range network.QueryTypes() {
		data, err := network.GenerateSchema(msgType)
		if err != nil {
			log.Fatalf("schema: %v", err)
		}
		outPath := filepath.Join(outDir, msgType+".schema.json")
		if err := writeSchema(outPath, data); err != nil {
			log.Fatalf("schema: %v", err)
		}
		log.Printf("wrote %s", outPath)
	}
}

func writeSchema(outPath string, data []byte) error {
	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
