//go:build darwin

package main

import (
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

// On macOS the program keeps its state under Application Support
// and holds a power-management assertion so the display does not
// sleep mid-QSO.

func platformInit() {
	home, err := os.UserHomeDir()
	if err != nil {
		log.Printf("macos: no home directory: %v", err)
		return
	}
	dir := filepath.Join(home, "Library", "Application Support", "piHPSDR")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("macos: cannot create %s: %v", dir, err)
		return
	}
	if err := os.Chdir(dir); err != nil {
		log.Printf("macos: cannot chdir to %s: %v", dir, err)
		return
	}

	// caffeinate -d holds the display-sleep assertion while we run
	c := exec.Command("caffeinate", "-d")
	if err := c.Start(); err != nil {
		log.Printf("macos: power assertion failed: %v", err)
	}
}
