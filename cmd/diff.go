package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/illarion/dirvault/internal/crypto"
)

// Diff compares the sealed contents of a vault with local files
func Diff(ctx context.Context, dir string) {
	s := openSession()
	defer s.Close()

	rec := s.record(dir)

	password, source, err := s.GetPasswordWithRetry("Enter password: ", rec)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sp := startSpinner("Decrypting " + rec.Name + "...")
	diffs, err := s.manager.Diff(ctx, rec.Path, password)
	sp.Stop()
	if err != nil {
		HandleError(err)
	}

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)

	changed := 0
	for _, d := range diffs {
		switch {
		case !d.LocalExists:
			fmt.Printf("  vault only: %s\n", d.Name)
		case d.Identical:
			fmt.Printf("  unchanged:  %s\n", d.Name)
		default:
			changed++
			fmt.Printf("  modified:   %s\n", d.Name)
		}
	}

	for _, d := range diffs {
		if d.Diff == "" {
			continue
		}
		fmt.Println()
		for _, line := range strings.Split(strings.TrimSuffix(d.Diff, "\n"), "\n") {
			switch {
			case len(line) > 0 && line[0] == '+':
				added.Println(line)
			case len(line) > 0 && line[0] == '-':
				removed.Println(line)
			default:
				fmt.Println(line)
			}
		}
	}

	if changed == 0 {
		fmt.Println("\nNo local changes")
	}

	if source == SourcePrompt {
		s.OfferToSavePassword(rec, password)
	}
}
