package agent

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// listingFactNames caps how many entry names a directory fact carries.
const listingFactNames = 8

// extractFacts mines a successful tool result for durable facts. Parsers
// are format-specific and conservative: no recognized format, no fact.
func extractFacts(result tools.ToolResult) []string {
	var facts []string
	facts = append(facts, osReleaseFacts(result.Output)...)
	if f, ok := kernelFact(result); ok {
		facts = append(facts, f)
	}
	if f, ok := listingFact(result); ok {
		facts = append(facts, f)
	}
	return facts
}

// osReleaseFacts parses os-release style KEY=VALUE output into at most two
// facts: the pretty name (or bare name) and the version id.
func osReleaseFacts(output string) []string {
	if !strings.Contains(output, "PRETTY_NAME=") &&
		!(strings.Contains(output, "NAME=") && strings.Contains(output, "ID=")) {
		return nil
	}

	values := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found || key == "" {
			continue
		}
		values[key] = strings.Trim(value, `"'`)
	}

	var facts []string
	if name := values["PRETTY_NAME"]; name != "" {
		facts = append(facts, "Operating system: "+name)
	} else if name := values["NAME"]; name != "" {
		facts = append(facts, "Operating system: "+name)
	}
	if version := values["VERSION_ID"]; version != "" {
		facts = append(facts, "OS version: "+version)
	}
	return facts
}

// kernelVersionRe matches release strings like 6.8.0-45-generic.
var kernelVersionRe = regexp.MustCompile(`\b\d+\.\d+\.\d+[\w.\-]*`)

// kernelFact pulls a kernel release out of uname-style output. It triggers
// on uname invocations and on output that announces itself as Linux, so a
// bare `uname -r` version line is still caught.
func kernelFact(result tools.ToolResult) (string, bool) {
	command, _ := result.Args["command"].(string)
	triggered := strings.Contains(command, "uname") ||
		strings.HasPrefix(result.Output, "Linux ") ||
		strings.Contains(result.Output, "Linux version ")
	if !triggered {
		return "", false
	}
	version := kernelVersionRe.FindString(result.Output)
	if version == "" {
		return "", false
	}
	return "Kernel version: " + version, true
}

// listingFact summarizes a directory listing into one fact: where, the
// first few entry names, and how many entries there were in total.
func listingFact(result tools.ToolResult) (string, bool) {
	path, lines, ok := listingLines(result)
	if !ok {
		return "", false
	}
	if path == "" {
		path = "."
	}

	if len(lines) == 1 && lines[0] == "(empty directory)" {
		return fmt.Sprintf("Directory contents of %s: empty", path), true
	}

	var names []string
	total := 0
	for _, line := range lines {
		name := entryName(line)
		if name == "" {
			continue
		}
		total++
		if len(names) < listingFactNames {
			names = append(names, name)
		}
	}
	if total == 0 {
		return "", false
	}

	fact := fmt.Sprintf("Directory contents of %s: %s", path, strings.Join(names, ", "))
	if extra := total - len(names); extra > 0 {
		fact += fmt.Sprintf(" and %d more", extra)
	}
	return fact, true
}

// listingLines decides whether the result is a directory listing and splits
// it: the list_dir tool (including its shell fallback) or a shell ls.
func listingLines(result tools.ToolResult) (path string, lines []string, ok bool) {
	command, _ := result.Args["command"].(string)
	isLs := strings.HasPrefix(strings.TrimSpace(command), "ls")

	if !strings.Contains(result.ToolName, "list_dir") && !isLs {
		return "", nil, false
	}

	if p, found := result.Args["path"].(string); found && p != "" {
		path = p
	} else if isLs {
		path, _ = firstPathToken(command)
	}

	for _, line := range strings.Split(result.Output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return path, lines, true
}

// entryName extracts one entry name from a listing line, handling both the
// list_dir format ("name (123 bytes)") and long ls output.
func entryName(line string) string {
	if strings.HasPrefix(line, "total ") {
		return ""
	}
	fields := strings.Fields(line)
	if len(fields) >= 9 && len(fields[0]) >= 10 && strings.ContainsAny(fields[0], "rwx-") {
		// ls -la long format: the name is everything past the date columns.
		name := strings.Join(fields[8:], " ")
		if name == "." || name == ".." {
			return ""
		}
		return name
	}
	if idx := strings.Index(line, " ("); idx > 0 {
		return line[:idx]
	}
	return line
}
