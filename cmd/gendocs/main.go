// Command gendocs writes the command reference as markdown pages and,
// optionally, man pages.
package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra/doc"
	"github.com/spf13/pflag"
	"github.com/sweetstyle/opsrun/internal/cmd"
)

func main() {
	outputDir := pflag.StringP("output", "o", "./docs/commands", "Directory for the markdown pages")
	linkPrefix := pflag.String("link-prefix", "/opsrun/commands/", "URL prefix for links between pages")
	manDir := pflag.String("man", "", "Also write man pages to this directory")
	pflag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	// Frontmatter for the static site generator
	filePrepender := func(filename string) string {
		name := filepath.Base(filename)
		name = strings.TrimSuffix(name, filepath.Ext(name))
		title := strings.ReplaceAll(name, "_", " ")
		return `---
title: "` + title + `"
---

`
	}

	linkHandler := func(name string) string {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		return *linkPrefix + strings.ToLower(base) + "/"
	}

	rootCmd := cmd.GetRootCmd()
	rootCmd.DisableAutoGenTag = true
	if err := doc.GenMarkdownTreeCustom(rootCmd, *outputDir, filePrepender, linkHandler); err != nil {
		log.Fatalf("Failed to generate documentation: %v", err)
	}
	log.Printf("Documentation generated in %s", *outputDir)

	if *manDir == "" {
		return
	}
	if err := os.MkdirAll(*manDir, 0755); err != nil {
		log.Fatalf("Failed to create man directory: %v", err)
	}
	header := &doc.GenManHeader{Title: "OPSRUN", Section: "1", Source: "opsrun"}
	if err := doc.GenManTree(rootCmd, header, *manDir); err != nil {
		log.Fatalf("Failed to generate man pages: %v", err)
	}
	log.Printf("Man pages generated in %s", *manDir)
}
