package cmd

import (
	"context"
	"fmt"

	"github.com/illarion/dirvault/internal/crypto"
)

// Create registers dir as a vault and seals it right away
func Create(ctx context.Context, dir, name string) {
	s := openSession()
	defer s.Close()

	password, source, err := GetPasswordForCreate()
	if err != nil {
		HandleError(err)
	}
	defer crypto.ClearBytes(password)

	sp := startSpinner("Sealing vault...")
	rec, result, err := s.manager.CreateVault(ctx, name, dir, password)
	sp.Stop()
	if err != nil {
		if rec != nil {
			s.log.Warnf("vault %s was sealed but not cleanly", rec.Path)
		}
		HandleError(err)
	}

	fmt.Printf("%s created vault %s at %s\n", okMark, rec.Name, rec.Path)
	fmt.Printf("sealed: %d files (%s)\n", len(result.Files), formatSize(int64(result.ContainerSize)))
	for _, f := range result.Files {
		s.log.Infof("  %s", f)
	}

	if source == SourcePrompt {
		s.OfferToSavePassword(rec, password)
	}
}
