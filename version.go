package main

import "fmt"

// Version and firmware compatibility. The -V flag prints this and
// exits.

const (
	programName    = "hpsdr_remote"
	programVersion = "1.4.0"
)

// Oldest firmware each protocol family has been verified against.
var firmwareCompat = []struct {
	Family string
	MinFw  string
}{
	{"Protocol 1 (Metis/Hermes/Angelia/Orion)", "2.8"},
	{"Protocol 1 (HermesLite V2)", "40 (7.2)"},
	{"Protocol 2 (Orion2/Saturn/G2)", "1.7"},
}

func printVersion() {
	fmt.Printf("%s %s (client/server protocol %08X)\n", programName, programVersion, ClientServerVersion)
	fmt.Println("FPGA firmware compatibility:")
	for _, fc := range firmwareCompat {
		fmt.Printf("  %-40s >= %s\n", fc.Family, fc.MinFw)
	}
}
