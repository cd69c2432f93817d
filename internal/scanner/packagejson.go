package scanner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/sweetstyle/opsrun/internal/constants"
)

// PackageJSON represents a package.json file
type PackageJSON struct {
	Name    string            `json:"name"`
	Main    string            `json:"main"`
	Scripts map[string]string `json:"scripts"`
	DevDeps map[string]string `json:"devDependencies"`
	Deps    map[string]string `json:"dependencies"`
	Engines struct {
		Node string `json:"node"`
	} `json:"engines"`
}

// parsePackageJSON parses the package.json file in dir
func parsePackageJSON(dir string) (*PackageJSON, error) {
	data, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return nil, err
	}

	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}

	return &pkg, nil
}

// has checks if a package is a dependency or dev dependency
func (p *PackageJSON) has(name string) bool {
	if _, ok := p.Deps[name]; ok {
		return true
	}
	_, ok := p.DevDeps[name]
	return ok
}

var nodeMajorRegex = regexp.MustCompile(`\d+`)

// extractNodeVersion extracts the highest major version from an engines
// constraint such as ">=18", "^20.11" or "18.x || 20.x".
func extractNodeVersion(constraint string) string {
	highest := 0
	for _, m := range nodeMajorRegex.FindAllString(constraint, -1) {
		n, err := strconv.Atoi(m)
		// minor and patch numbers are small; majors start at 14 for anything we install
		if err != nil || n < 14 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	if highest == 0 {
		return constants.DefaultNodeVersion
	}
	return strconv.Itoa(highest)
}
