package shell

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/midu16/ollama-chain-sub000/internal/logging"
	"github.com/midu16/ollama-chain-sub000/internal/tools"
)

// denyPatterns lists catastrophic command shapes. This is a hard gate for
// commands reaching the shell without model mediation (auto-execution),
// not a general sandbox: a match rejects the command before any
// subprocess is spawned, and is never retried.
var denyPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"recursive root delete", regexp.MustCompile(`\brm\s+(?:-{1,2}\S+\s+)+/(\*|\s|$)`)},
	{"filesystem format", regexp.MustCompile(`\bmkfs(\.\S+)?\b`)},
	{"fork bomb", regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`)},
	{"raw device overwrite", regexp.MustCompile(`\bof=/dev/(sd[a-z]|hd[a-z]|nvme\d|vd[a-z]|xvd[a-z]|mmcblk\d|disk\d)`)},
	{"blanket root chmod", regexp.MustCompile(`\bchmod\s+(?:-\S+\s+)*777\s+/(\s|$)`)},
}

// CheckCommand rejects commands matching the denylist. extra holds
// additional patterns from config, compiled on each call site's behalf
// at registration time.
func CheckCommand(command string, extra []*regexp.Regexp) error {
	normalized := strings.Join(strings.Fields(command), " ")

	for _, p := range denyPatterns {
		if p.re.MatchString(normalized) {
			logging.Get(logging.CategoryTools).Warn("shell safety gate rejected command (%s): %s", p.name, command)
			return fmt.Errorf("%w: %s", tools.ErrBlockedCommand, p.name)
		}
	}
	for _, re := range extra {
		if re.MatchString(normalized) {
			logging.Get(logging.CategoryTools).Warn("shell safety gate rejected command (custom pattern %s): %s", re.String(), command)
			return fmt.Errorf("%w: custom pattern %s", tools.ErrBlockedCommand, re.String())
		}
	}
	return nil
}

// compileExtraPatterns compiles user-supplied denylist additions,
// skipping (and logging) any that fail to compile.
func compileExtraPatterns(patterns []string) []*regexp.Regexp {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			logging.Get(logging.CategoryTools).Warn("ignoring invalid deny pattern %q: %v", p, err)
			continue
		}
		compiled = append(compiled, re)
	}
	return compiled
}
