//go:build !darwin

package main

// Only macOS needs the working-directory and power-assertion
// setup.
func platformInit() {}
