package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sweetstyle/opsrun/internal/envfile"
)

var (
	frontendCandidates  = []string{".", "frontend", "client", "web", "app"}
	backendCandidates   = []string{"backend", "server", "api", "."}
	seedCandidates      = []string{"db/seed.yaml", "backend/db/seed.yaml", "seed.yaml"}
	functionsCandidates = []string{"supabase/functions", "functions"}

	backendEntries = []string{"server.js", "app.js", "index.js"}
	knownDirs      = []string{"routes", "services", "middleware", "models", "controllers", "db", "uploads"}
)

func isFrontend(pkg *PackageJSON, dir string) bool {
	if pkg.Scripts["build"] == "" {
		return false
	}
	return pkg.has("vite") || pkg.has("react-scripts") || pkg.has("@vue/cli-service") || fileExists(dir, "index.html")
}

func isBackend(pkg *PackageJSON, dir string) bool {
	if !(pkg.has("express") || pkg.has("fastify") || pkg.has("koa")) {
		return false
	}
	return backendEntry(pkg, dir) != ""
}

func fileExists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// detectPackageManager detects whether npm, yarn, or pnpm is used
func detectPackageManager(dir string) string {
	if fileExists(dir, "pnpm-lock.yaml") {
		return "pnpm"
	}
	if fileExists(dir, "yarn.lock") {
		return "yarn"
	}
	return "npm"
}

// buildCommand returns the appropriate build command
func buildCommand(pkg *PackageJSON, pm string) string {
	if _, ok := pkg.Scripts["build:prod"]; ok {
		return pm + " run build:prod"
	}
	return pm + " run build"
}

// distDir is where the build tool writes its output
func distDir(pkg *PackageJSON) string {
	if pkg.has("react-scripts") {
		return "build"
	}
	return "dist"
}

func backendEntry(pkg *PackageJSON, dir string) string {
	if pkg.Main != "" && fileExists(dir, pkg.Main) {
		return pkg.Main
	}
	for _, name := range backendEntries {
		if fileExists(dir, name) {
			return name
		}
	}
	return ""
}

// backendFiles lists the top-level files deployed with the API.
func backendFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.HasSuffix(name, ".js") || strings.HasSuffix(name, ".mjs") || name == "package.json" || name == "package-lock.json" {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files
}

// backendDirs lists the known source directories, plus uploads which the
// API always needs.
func backendDirs(dir string) []string {
	var dirs []string
	for _, name := range knownDirs {
		if info, err := os.Stat(filepath.Join(dir, name)); (err == nil && info.IsDir()) || name == "uploads" {
			dirs = append(dirs, name)
		}
	}
	return dirs
}

func readEnvExample(dir string) map[string]string {
	data, err := os.ReadFile(filepath.Join(dir, ".env.example"))
	if err != nil {
		return nil
	}
	vars, err := envfile.Parse(string(data))
	if err != nil {
		return nil
	}
	return vars
}

// envExampleKeys returns the sorted keys of .env.example in dir.
func envExampleKeys(dir string) []string {
	vars := readEnvExample(dir)
	if len(vars) == 0 {
		return nil
	}
	return envfile.Keys(vars)
}

func envExampleValue(dir, key string) string {
	return readEnvExample(dir)[key]
}

var (
	remoteSectionRegex = regexp.MustCompile(`^\s*\[remote "origin"\]\s*$`)
	urlRegex           = regexp.MustCompile(`^\s*url\s*=\s*(\S+)\s*$`)
)

// gitRemote returns the origin URL from .git/config, or "".
func gitRemote(dir string) string {
	f, err := os.Open(filepath.Join(dir, ".git", "config"))
	if err != nil {
		return ""
	}
	defer f.Close()

	inOrigin := false
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			inOrigin = remoteSectionRegex.MatchString(line)
			continue
		}
		if m := urlRegex.FindStringSubmatch(line); inOrigin && m != nil {
			return m[1]
		}
	}
	return ""
}
