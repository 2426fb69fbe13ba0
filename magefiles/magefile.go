//go:build mage

// Package main holds the Mage targets for docket, the review store for
// extracted documents.
//
// Usage:
//
//	mage build           Compile bin/docket
//	mage test            Run all tests (unit + integration)
//	mage testUnit        Run the package tests only
//	mage testRace        Run internal packages under the race detector
//	mage testIntegration Build, then run the end-to-end CLI tests
//	mage sample          Build and load the sample invoice into a scratch store
//	mage lint            Run golangci-lint
//	mage clean           Remove bin/ and the scratch store
//	mage install         Install docket to GOPATH/bin
//	mage stats           Print Go LOC per package and documentation word counts
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binaryName = "docket"
	binaryDir  = "bin"
	cmdDir     = "./cmd/docket"

	// sampleDir is the scratch config and data root used by Sample.
	sampleDir   = ".docket-sample"
	sampleType  = "magefiles/sample/fattura.yaml"
	sampleInput = "magefiles/sample/fattura.json"
)

// Build compiles the docket binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Test runs all tests (unit and integration).
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// TestUnit runs the package tests, skipping tests/integration.
func TestUnit() error {
	pkgs, err := sh.Output("go", "list", "./...")
	if err != nil {
		return err
	}
	var unitPkgs []string
	for _, pkg := range strings.Split(pkgs, "\n") {
		if pkg != "" && !strings.Contains(pkg, "/tests/") && !strings.HasSuffix(pkg, "/tests") {
			unitPkgs = append(unitPkgs, pkg)
		}
	}
	if len(unitPkgs) == 0 {
		fmt.Println("No unit test packages found.")
		return nil
	}
	args := append([]string{"test"}, unitPkgs...)
	return sh.RunV("go", args...)
}

// TestRace runs the internal packages under the race detector.
func TestRace() error {
	return sh.RunV("go", "test", "-race", "./internal/...")
}

// TestIntegration builds first, then runs only integration tests.
func TestIntegration() error {
	mg.Deps(Build)
	return sh.RunV("go", "test", "./tests/...")
}

// Sample builds docket and walks the sample invoice through a scratch store:
// init, type put, doc create, a correction, validate and get. The store is
// left in .docket-sample for inspection.
func Sample() error {
	mg.Deps(Build)
	if err := os.RemoveAll(sampleDir); err != nil {
		return err
	}
	docket := sampleCmd()

	if err := docket("init"); err != nil {
		return err
	}
	typeID, err := sampleOutput("type", "put", sampleType)
	if err != nil {
		return fmt.Errorf("loading %s: %w", sampleType, err)
	}
	docID, err := sampleOutput("doc", "create",
		"--type", typeID,
		"--name", "fattura-acme.pdf",
		"--result", sampleInput,
	)
	if err != nil {
		return fmt.Errorf("creating sample document: %w", err)
	}
	fmt.Printf("type %s, document %s\n", typeID, docID)

	if err := docket("row", "edit", docID, "2", `{"quantita":60}`); err != nil {
		return err
	}
	if err := docket("doc", "validate", docID); err != nil {
		return err
	}
	return docket("doc", "get", docID)
}

// sampleArgs points docket at the scratch store.
func sampleArgs(args ...string) []string {
	return append([]string{
		"--config-dir", filepath.Join(sampleDir, "config"),
		"--data-dir", filepath.Join(sampleDir, "data"),
	}, args...)
}

func sampleCmd() func(args ...string) error {
	bin := filepath.Join(binaryDir, binaryName)
	return func(args ...string) error {
		return sh.RunV(bin, sampleArgs(args...)...)
	}
}

func sampleOutput(args ...string) (string, error) {
	out, err := sh.Output(filepath.Join(binaryDir, binaryName), sampleArgs(args...)...)
	return strings.TrimSpace(out), err
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts and the sample store.
func Clean() error {
	for _, dir := range []string{binaryDir, sampleDir} {
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	return sh.RunV("go", "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output("go", "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Stats prints Go lines of code per package and documentation word counts.
func Stats() error {
	prod := map[string]int{}
	tests := map[string]int{}

	err := filepath.Walk(".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			switch path {
			case "vendor", ".git", "_examples", "magefiles", binaryDir, sampleDir:
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") {
			return nil
		}
		count, countErr := countLines(path)
		if countErr != nil {
			return nil
		}
		pkg := filepath.Dir(path)
		if strings.HasSuffix(path, "_test.go") {
			tests[pkg] += count
		} else {
			prod[pkg] += count
		}
		return nil
	})
	if err != nil {
		return err
	}

	pkgs := make([]string, 0, len(prod))
	for pkg := range prod {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var prodTotal, testTotal int
	for _, pkg := range pkgs {
		fmt.Printf("%-24s %6d %6d\n", pkg, prod[pkg], tests[pkg])
		prodTotal += prod[pkg]
		testTotal += tests[pkg]
	}

	docWords, err := countDocWords()
	if err != nil {
		return err
	}
	fmt.Printf("Lines of code (Go, production): %d\n", prodTotal)
	fmt.Printf("Lines of code (Go, tests):      %d\n", testTotal)
	fmt.Printf("Words (documentation):          %d\n", docWords)
	return nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	return count, scanner.Err()
}

// countDocWords counts the words of the top-level Markdown files.
func countDocWords() (int, error) {
	matches, err := filepath.Glob("*.md")
	if err != nil {
		return 0, err
	}
	total := 0
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		total += countWords(string(data))
	}
	return total, nil
}

func countWords(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
		} else if !inWord {
			inWord = true
			count++
		}
	}
	return count
}
