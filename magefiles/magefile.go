//go:build mage

// Package main contains Mage build targets for figurescout developer tooling.
package main

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// workDirs lists the local state directories the CLI expects.
var workDirs = []string{
	".figurescout",
	".secrets",
}

// Init creates the local state directories and a starter config file.
func Init() error {
	for _, dir := range workDirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err := os.WriteFile(configFile, []byte(starterConfig), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", configFile, err)
		}
		fmt.Println("  ", configFile)
	}
	fmt.Println("Workspace initialized.")
	return nil
}

const configFile = "figurescout.yaml"

const starterConfig = `api:
  base_url: http://localhost:5000
  timeout: 120s
enrich:
  batch_size: 10
  retry: true
cache:
  backend: file
  max_age: 24h
project_store:
  backend: http
log:
  level: warn
`

const (
	binDir  = "bin"
	binName = "figurescout"
	cmdPkg  = "./cmd/figurescout"
)

// Build compiles the CLI binary into bin/.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	if err := sh.RunV("go", "build", "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Check vets the module and runs the tests.
func Check() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	mg.Deps(Test)
	return nil
}

// Install builds the binary, then copies it into GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	return sh.RunV("go", "install", cmdPkg)
}

// Clean removes build output.
func Clean() error {
	return sh.Rm(binDir)
}

// Stats prints Go production and test line counts and the word count of
// the Markdown and YAML documents.
func Stats() error {
	var st treeStats
	if err := filepath.WalkDir(".", st.visit); err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", st.prodLines)
	fmt.Printf("Lines of code (Go, tests):      %d\n", st.testLines)
	fmt.Printf("Words (documentation):          %d\n", st.docWords)
	return nil
}

type treeStats struct {
	prodLines int
	testLines int
	docWords  int
}

// visit counts one file. Dot and underscore directories hold local state
// and reference material and are skipped, as is the build output.
func (st *treeStats) visit(path string, d fs.DirEntry, err error) error {
	if err != nil {
		return err
	}
	name := d.Name()
	if d.IsDir() {
		if path != "." && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == binDir) {
			return filepath.SkipDir
		}
		return nil
	}

	switch filepath.Ext(name) {
	case ".go":
		n, err := nonBlankLines(path)
		if err != nil {
			return err
		}
		if strings.HasSuffix(name, "_test.go") {
			st.testLines += n
		} else {
			st.prodLines += n
		}
	case ".md", ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		st.docWords += len(strings.Fields(string(data)))
	}
	return nil
}

func nonBlankLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			n++
		}
	}
	return n, sc.Err()
}
