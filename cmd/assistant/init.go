package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

var errNoProviders = errors.New("select at least one provider")

func runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", defaultConfigPath, "path of the config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	data, err := runWizard()
	if err != nil {
		return err
	}

	if err := writeConfig(*path, data, *force); err != nil {
		return err
	}

	fmt.Printf("Wrote %s\n", *path)
	return nil
}

// writeConfig writes data to path, refusing to replace an existing file
// unless force is set.
func writeConfig(path string, data []byte, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}

	return os.WriteFile(path, data, 0o600)
}
