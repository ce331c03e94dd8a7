package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// VaultStatus describes how a vault directory relates to an enclosing git repository
type VaultStatus struct {
	IsRepo           bool
	ContainerTracked bool
	ContainerIgnored bool
	TrackedPlaintext []string // Files git still has in history (bad)
}

func run(ctx context.Context, workDir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = workDir
	return cmd.Output()
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(ctx context.Context, workDir string) bool {
	_, err := run(ctx, workDir, "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(ctx context.Context, workDir, path string) bool {
	output, err := run(ctx, workDir, "ls-files", "--", path)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(ctx context.Context, workDir, path string) bool {
	// git check-ignore returns exit code 0 if file is ignored
	_, err := run(ctx, workDir, "check-ignore", "-q", "--", path)
	return err == nil
}

// CheckVault inspects the vault directory dir. names are the plaintext files
// the vault holds; container is the container artifact name.
func CheckVault(ctx context.Context, dir string, names []string, container string) (*VaultStatus, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return &VaultStatus{}, nil
	}

	status := &VaultStatus{}
	if !IsGitRepo(ctx, dir) {
		return status, nil
	}
	status.IsRepo = true

	status.ContainerTracked = IsTracked(ctx, dir, container)
	status.ContainerIgnored = IsIgnored(ctx, dir, container)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if IsTracked(ctx, dir, name) {
			status.TrackedPlaintext = append(status.TrackedPlaintext, name)
		}
	}

	return status, nil
}

// FormatVaultStatus formats git status for display
func FormatVaultStatus(status *VaultStatus, container string) string {
	if status == nil || !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit Integration:\n")

	// Plaintext committed to git survives locking in the history
	if len(status.TrackedPlaintext) > 0 {
		result.WriteString(fmt.Sprintf("   error: %d plaintext file(s) tracked by git:\n", len(status.TrackedPlaintext)))
		for _, file := range status.TrackedPlaintext {
			result.WriteString(fmt.Sprintf("      - %s (run: git rm --cached %s)\n", file, file))
		}
	} else {
		result.WriteString("   ok: no plaintext files tracked by git\n")
	}

	switch {
	case status.ContainerTracked:
		result.WriteString(fmt.Sprintf("   ok: %s is tracked by git\n", container))
	case status.ContainerIgnored:
		result.WriteString(fmt.Sprintf("   warning: %s is ignored by git and will not be versioned\n", container))
	default:
		result.WriteString(fmt.Sprintf("   info: %s not tracked (run: git add %s)\n", container, container))
	}

	return result.String()
}
