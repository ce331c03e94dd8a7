package cmd

import (
	"fmt"
	"os"
)

// Compact compacts the vault registry to reclaim unused space
func Compact() {
	s := openSession()
	defer s.Close()

	path := s.registry.Path()

	// Get file size before
	info, err := os.Stat(path)
	if err != nil {
		HandleError(err)
	}
	sizeBefore := info.Size()

	if err := s.registry.Compact(); err != nil {
		HandleError(err)
	}

	// Get file size after
	info, err = os.Stat(path)
	if err != nil {
		HandleError(err)
	}
	sizeAfter := info.Size()

	fmt.Printf("Compacted: %s -> %s\n", formatSize(sizeBefore), formatSize(sizeAfter))
}
