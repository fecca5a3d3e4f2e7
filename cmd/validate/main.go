package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/boss-rush/internal/arena"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <content.yaml> [more.yaml ...]\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		if err := validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

// validateFile loads a content bank the way the server does, then lints it.
// Lint findings fail validation too.
func validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("content file must have a .yaml extension: %s", filepath.Base(filename))
	}

	content, err := arena.LoadContent(filename)
	if err != nil {
		return err
	}

	if findings := content.Lint(); len(findings) > 0 {
		return fmt.Errorf("validation errors in %s:\n  %s", filename, strings.Join(findings, "\n  "))
	}
	return nil
}
