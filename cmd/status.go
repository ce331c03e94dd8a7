package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/illarion/dirvault/internal/core"
	"github.com/illarion/dirvault/internal/crypto"
	"github.com/illarion/dirvault/internal/git"
)

// Status shows the state of one vault without asking for its password
func Status(ctx context.Context, dir string) {
	s := openSession()
	defer s.Close()

	report, err := s.manager.Status(ctx, dir)
	if err != nil {
		HandleError(err)
	}
	rec := report.Record

	state := openMark
	if rec.Locked {
		state = lockMark
	}
	fmt.Printf("Vault:    %s\n", rec.Name)
	fmt.Printf("Path:     %s\n", rec.Path)
	fmt.Printf("State:    %s\n", state)
	fmt.Printf("Created:  %s\n", rec.Created.Format(time.RFC3339))
	fmt.Printf("Modified: %s\n", rec.Modified.Format(time.RFC3339))

	if params, err := crypto.ParseParams(rec.PasswordHash); err == nil {
		fmt.Printf("KDF:      argon2id m=%d KiB, t=%d, p=%d\n", params.Memory, params.Time, params.Threads)
	}
	fmt.Printf("Shuffled: %v\n", rec.Shuffled)

	if report.ContainerPresent {
		fmt.Printf("\n%s: present (%s)\n", core.ContainerName, formatSize(report.ContainerSize))
	} else {
		fmt.Printf("\n%s: absent\n", core.ContainerName)
	}

	switch {
	case rec.Locked && !report.ContainerPresent:
		fmt.Printf("%s vault is marked locked but its container is missing\n", failMark)
	case !rec.Locked && report.ContainerPresent:
		fmt.Printf("%s vault is marked unlocked but a container is present\n", failMark)
	}

	fmt.Println("\nPlaintext files:")
	if len(report.PlainFiles) == 0 {
		fmt.Println("  (none)")
	}
	for _, name := range report.PlainFiles {
		fmt.Printf("  %s\n", name)
	}

	fmt.Print(git.FormatVaultStatus(report.Git, core.ContainerName))

	if s.settings.UseKeyring {
		if s.keys.Has(rec.ID) {
			fmt.Println("\nPassword: stored in keyring")
		} else {
			fmt.Println("\nPassword: not stored")
		}
	}
}

// formatSize formats a file size in human-readable form
func formatSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.1f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.1f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.1f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d bytes", size)
	}
}
