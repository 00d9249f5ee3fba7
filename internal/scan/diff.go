package scan

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ChangeSet lists the repo-relative paths that changed between a ref and
// the working tree.
type ChangeSet struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// Paths returns every added or modified path.
func (c *ChangeSet) Paths() []string {
	out := make([]string, 0, len(c.Added)+len(c.Modified))
	out = append(out, c.Added...)
	out = append(out, c.Modified...)
	return out
}

// Empty reports whether nothing changed.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// GitChanges diffs the working tree against sinceRef via git. An invalid
// ref or a non-repository root surfaces as an error carrying git's stderr.
func GitChanges(ctx context.Context, root, sinceRef string) (*ChangeSet, error) {
	cmd := exec.CommandContext(ctx, "git", "diff", "--name-status", "--no-renames", sinceRef, "--", ".")
	cmd.Dir = root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("git diff against %s: %s", sinceRef, msg)
	}

	// Untracked files do not appear in the diff but are still new content.
	untracked, err := gitUntracked(ctx, root)
	if err != nil {
		return nil, err
	}

	cs := &ChangeSet{}
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		status, path, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		switch status[0] {
		case 'A':
			cs.Added = append(cs.Added, path)
		case 'M', 'T':
			cs.Modified = append(cs.Modified, path)
		case 'D':
			cs.Deleted = append(cs.Deleted, path)
		}
	}
	cs.Added = append(cs.Added, untracked...)
	return cs, nil
}

func gitUntracked(ctx context.Context, root string) ([]string, error) {
	cmd := exec.CommandContext(ctx, "git", "ls-files", "--others", "--exclude-standard")
	cmd.Dir = root
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	var out []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out, nil
}
