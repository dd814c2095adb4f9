package diagnose

import (
	"os"
	"os/exec"
	"path/filepath"
)

// TestProbe describes the test runner detected for the working tree.
type TestProbe struct {
	// Tool is the detected ecosystem: go, node, python, make, or empty.
	Tool      string
	Command   []string
	Available bool
}

// markerCommands orders the project markers checked for a test runner.
// The first match wins.
var markerCommands = []struct {
	marker  string
	tool    string
	binary  string
	command []string
}{
	{"go.mod", "go", "go", []string{"go", "test", "./..."}},
	{"package.json", "node", "npm", []string{"npm", "test"}},
	{"pyproject.toml", "python", "pytest", []string{"pytest"}},
	{"pytest.ini", "python", "pytest", []string{"pytest"}},
	{"Makefile", "make", "make", []string{"make", "test"}},
}

// ProbeTestRunner inspects workDir for a known project layout and checks
// whether the matching test tool is installed.
func ProbeTestRunner(workDir string) TestProbe {
	for _, mc := range markerCommands {
		if _, err := os.Stat(filepath.Join(workDir, mc.marker)); err != nil {
			continue
		}
		_, lookErr := exec.LookPath(mc.binary)
		return TestProbe{
			Tool:      mc.tool,
			Command:   mc.command,
			Available: lookErr == nil,
		}
	}
	return TestProbe{}
}
