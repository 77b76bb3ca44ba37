package command

import (
	"strings"
)

// Candidate is one executable invocation: the program followed by its fixed
// flags. The entry script is not included; use Argv to obtain the full argv.
type Candidate []string

// Argv returns a fresh slice holding the candidate followed by script.
func (c Candidate) Argv(script string) []string {
	argv := make([]string, 0, len(c)+1)
	argv = append(argv, c...)
	return append(argv, script)
}

// String joins the candidate with spaces for log and error messages.
func (c Candidate) String() string {
	return strings.Join(c, " ")
}

// key identifies a candidate for deduplication. NUL cannot occur in argv
// entries, so distinct candidates never share a key.
func (c Candidate) key() string {
	return strings.Join(c, "\x00")
}

// DefaultPathNames returns the engine executable names looked up in PATH on
// the given GOOS when no explicit list is configured.
func DefaultPathNames(goos string) []string {
	if goos == "windows" {
		return []string{"node.exe", "node"}
	}
	return []string{"node", "nodejs"}
}

// Candidates returns the deduplicated candidate list in priority order:
//
//  1. resolved, the absolute path of a provisioned runtime binary (skipped when empty);
//  2. every alternative of override (see ParseOverrides);
//  3. one single-element candidate per entry of pathNames.
//
// Duplicates keep their first position. A malformed override is reported
// before any candidate is produced.
func Candidates(resolved, override string, pathNames []string) ([]Candidate, error) {
	overrides, err := ParseOverrides(override)
	if err != nil {
		return nil, err
	}

	ordered := make([]Candidate, 0, 1+len(overrides)+len(pathNames))
	if resolved != "" {
		ordered = append(ordered, Candidate{resolved})
	}
	ordered = append(ordered, overrides...)
	for _, name := range pathNames {
		if name = strings.TrimSpace(name); name != "" {
			ordered = append(ordered, Candidate{name})
		}
	}

	seen := make(map[string]struct{}, len(ordered))
	out := ordered[:0]
	for _, c := range ordered {
		k := c.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out, nil
}
