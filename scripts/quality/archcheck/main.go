package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePrefix = "ex-sniper/"

type listedPackage struct {
	ImportPath   string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

func main() {
	packages, err := listPackages()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}

	violations := collectViolations(packages)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(os.Stdout, "arch-check: passed\n")
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "arch-check: architecture violations:\n")
	for _, violation := range violations {
		_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", violation)
	}
	os.Exit(1)
}

func listPackages() ([]listedPackage, error) {
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list -json -test ./...: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	result := make([]listedPackage, 0, 64)
	for {
		var pkg listedPackage
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode go list output: %w", err)
		}
		if pkg.ImportPath == "" {
			continue
		}
		result = append(result, pkg)
	}

	return result, nil
}

func collectViolations(packages []listedPackage) []string {
	found := make(map[string]struct{})

	for _, pkg := range packages {
		imports := append([]string{}, pkg.Imports...)
		imports = append(imports, pkg.TestImports...)
		imports = append(imports, pkg.XTestImports...)

		for _, imported := range imports {
			reason := violationReason(pkg.ImportPath, imported)
			if reason == "" {
				continue
			}
			entry := fmt.Sprintf("%s -> %s (%s)", pkg.ImportPath, imported, reason)
			found[entry] = struct{}{}
		}
	}

	violations := make([]string, 0, len(found))
	for violation := range found {
		violations = append(violations, violation)
	}
	sort.Strings(violations)

	return violations
}

// layerRule forbids importers under one prefix from reaching any of the
// listed prefixes.
type layerRule struct {
	importer  string
	forbidden []string
	reason    string
}

var transportPackages = []string{
	modulePrefix + "internal/gateway",
	modulePrefix + "internal/discord",
	modulePrefix + "internal/dispatch",
	modulePrefix + "internal/command",
	modulePrefix + "internal/session",
}

var layerRules = []layerRule{
	{
		importer:  modulePrefix + "pkg/sniper",
		forbidden: []string{modulePrefix + "internal/"},
		reason:    "pkg/sniper must not import internal/*",
	},
	{
		importer:  modulePrefix + "internal/",
		forbidden: []string{modulePrefix + "cmd/"},
		reason:    "internal/* must not import cmd/*",
	},
	{
		importer: modulePrefix + "internal/gateway",
		forbidden: []string{
			modulePrefix + "internal/discord",
			modulePrefix + "internal/dispatch",
			modulePrefix + "internal/command",
			modulePrefix + "internal/session",
		},
		reason: "internal/gateway reaches handlers and REST only through pkg/sniper contracts",
	},
	{
		importer: modulePrefix + "internal/dispatch",
		forbidden: []string{
			modulePrefix + "internal/gateway",
			modulePrefix + "internal/command",
			modulePrefix + "internal/session",
		},
		reason: "internal/dispatch must not depend on the stream or the executor",
	},
	{
		importer: modulePrefix + "internal/command",
		forbidden: []string{
			modulePrefix + "internal/gateway",
			modulePrefix + "internal/dispatch",
			modulePrefix + "internal/discord",
			modulePrefix + "internal/session",
		},
		reason: "internal/command must not depend on transport or session wiring",
	},
}

// storePackages hold state only and must stay free of transport imports.
var storePackages = []string{
	modulePrefix + "internal/cache",
	modulePrefix + "internal/docstore",
	modulePrefix + "internal/settings",
	modulePrefix + "internal/spy",
	modulePrefix + "internal/bump",
	modulePrefix + "internal/llm",
	modulePrefix + "internal/clock",
	modulePrefix + "internal/safe",
}

func violationReason(importer, imported string) string {
	for _, rule := range layerRules {
		if !strings.HasPrefix(importer, rule.importer) {
			continue
		}
		for _, forbidden := range rule.forbidden {
			if strings.HasPrefix(imported, forbidden) {
				return rule.reason
			}
		}
	}

	for _, store := range storePackages {
		if !samePackageTree(importer, store) {
			continue
		}
		for _, transport := range transportPackages {
			if samePackageTree(imported, transport) {
				return strings.TrimPrefix(store, modulePrefix) + " must not import transport packages"
			}
		}
	}

	return ""
}

// samePackageTree reports whether path is root or one of its subpackages,
// ignoring the " [pkg.test]" suffix go list adds to test variants.
func samePackageTree(path, root string) bool {
	path, _, _ = strings.Cut(path, " ")
	return path == root || strings.HasPrefix(path, root+"/") || path == root+".test"
}
