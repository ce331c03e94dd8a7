package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/illarion/dirvault/internal/config"
)

// Config prints the effective settings. With write set, the settings file
// is created from them when it does not exist yet.
func Config(write bool) {
	dir, err := config.Dir()
	if err != nil {
		HandleError(err)
	}
	settings, err := config.Load(dir)
	if err != nil {
		HandleError(err)
	}

	path := config.Path(dir)
	if write {
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("%s already exists\n", path)
			return
		}
		if err := config.Save(dir, settings); err != nil {
			HandleError(err)
		}
		fmt.Printf("%s wrote %s\n", okMark, path)
		return
	}

	fmt.Printf("# %s\n", path)
	if err := toml.NewEncoder(os.Stdout).Encode(settings); err != nil {
		HandleError(err)
	}
}
