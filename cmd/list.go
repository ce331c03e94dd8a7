package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

// List shows every registered vault
func List(jsonOutput bool) {
	s := openSession()
	defer s.Close()

	vaults, err := s.manager.ListVaults()
	if err != nil {
		HandleError(err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(vaults); err != nil {
			HandleError(err)
		}
		return
	}

	if len(vaults) == 0 {
		fmt.Println("No vaults registered")
		fmt.Println("Run 'dirvault create <dir>' to add one")
		return
	}

	fmt.Println("Vaults:")
	for _, v := range vaults {
		state := openMark
		if v.IsLocked {
			state = lockMark
		}
		fmt.Printf("  %-20s %-8s %s\n", v.Name, state, v.Path)
	}
}
