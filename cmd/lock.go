package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/dirvault/internal/crypto"
)

// Lock seals the files of an unlocked vault into its container
func Lock(ctx context.Context, dir string) {
	s := openSession()
	defer s.Close()

	rec := s.record(dir)
	if rec.Locked {
		fmt.Printf("%s is already locked\n", rec.Name)
		return
	}

	password, source, err := s.GetPasswordWithRetry("Enter password: ", rec)
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sp := startSpinner("Locking " + rec.Name + "...")
	result, err := s.manager.LockVault(ctx, rec.Path, password)
	sp.Stop()
	if err != nil {
		HandleError(err)
	}

	fmt.Printf("%s locked: %d files (%s)\n", okMark, len(result.Files), formatSize(int64(result.ContainerSize)))
	for _, name := range result.Files {
		s.log.Infof("  %s", name)
	}

	if source == SourcePrompt {
		s.OfferToSavePassword(rec, password)
	}
}
