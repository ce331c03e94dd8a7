package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"golang.org/x/term"

	"github.com/illarion/dirvault/internal/core"
	"github.com/illarion/dirvault/internal/crypto"
)

// Unlock restores the files of a locked vault with conflict resolution
func Unlock(ctx context.Context, dir string, force bool, keepBoth bool, abort bool) {
	// Validate mutually exclusive flags
	flagCount := boolToInt(force) + boolToInt(keepBoth) + boolToInt(abort)
	if flagCount > 1 {
		fmt.Fprintf(os.Stderr, "error: --force, --keep-both, and --abort are mutually exclusive\n")
		os.Exit(1)
	}

	s := openSession()
	defer s.Close()

	rec := s.record(dir)
	if !rec.Locked {
		fmt.Printf("%s is not locked\n", rec.Name)
		return
	}

	password, source, err := s.GetPasswordWithRetry("Enter password: ", rec)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	// Determine merge strategy
	var strategy core.MergeStrategy
	switch {
	case force:
		strategy = core.StrategyUseVault
	case keepBoth:
		strategy = core.StrategyKeepBoth
	case abort:
		strategy = core.StrategyAbort
	case term.IsTerminal(int(os.Stdin.Fd())):
		strategy = core.StrategyAsk
	default:
		strategy = core.StrategyUseVault
	}

	sp := startSpinner("Unlocking " + rec.Name + "...")
	prompt := core.PromptConflict(os.Stdin, os.Stdout)
	s.manager.Engine.Resolve = func(name string, local, vault []byte) (core.ConflictResolution, error) {
		sp.Stop()
		return prompt(name, local, vault)
	}

	result, err := s.manager.UnlockVault(ctx, rec.Path, password, strategy)
	sp.Stop()
	if result != nil {
		printOpenResult(result)
	}
	if err != nil {
		HandleError(err)
	}

	if source == SourcePrompt {
		s.OfferToSavePassword(rec, password)
	}
}

func printOpenResult(result *core.OpenResult) {
	if len(result.Written) > 0 {
		fmt.Printf("%s unlocked: %d files\n", okMark, len(result.Written))
		for _, name := range result.Written {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(result.KeptBoth) > 0 {
		names := make([]string, 0, len(result.KeptBoth))
		for name := range result.KeptBoth {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Printf("kept both: %d files\n", len(names))
		for _, name := range names {
			fmt.Printf("  %s -> %s\n", name, result.KeptBoth[name])
		}
	}
	if len(result.Unchanged) > 0 {
		fmt.Printf("unchanged: %d files\n", len(result.Unchanged))
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
