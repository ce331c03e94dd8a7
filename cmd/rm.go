package cmd

import (
	"fmt"
)

// Remove forgets an unlocked vault. Its files stay where they are.
func Remove(dir string) {
	s := openSession()
	defer s.Close()

	rec, err := s.manager.RemoveVault(dir)
	if err != nil {
		HandleError(err)
	}

	if err := s.keys.Delete(rec.ID); err != nil {
		s.log.Warnf("failed to remove keyring entry: %v", err)
	}

	fmt.Printf("%s removed vault %s (%s)\n", okMark, rec.Name, rec.Path)
}
