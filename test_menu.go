package main

import "fmt"

// -TestMenu: a debug aid that exercises the action surface. In the
// headless build it prints the action table with the store method
// each action ends up calling.

type actionTest struct {
	Name   string
	Target string
}

var actionTable = []actionTest{
	{"MOX", "Radio.SetMox"},
	{"TUNE", "Radio.SetTune"},
	{"TWO TONE", "Transmitter.TwoTone"},
	{"VFO A->B", "Radio.VfoAtoB"},
	{"VFO B->A", "Radio.VfoBtoA"},
	{"VFO SWAP", "Radio.VfoSwap"},
	{"BAND UP", "Radio.SelectBand"},
	{"BAND DOWN", "Radio.SelectBand"},
	{"MODE NEXT", "Radio.SetMode"},
	{"FILTER NEXT", "Radio.SetFilter"},
	{"SPLIT", "Radio.SetSplit"},
	{"SAT", "Radio.SetSat"},
	{"CTUN", "VFO.SetCTUN"},
	{"LOCK", "Radio.Locked"},
	{"STEP+", "Radio.VfoStep"},
	{"STEP-", "Radio.VfoStep"},
	{"STORE", "Radio.StoreMemory"},
	{"RECALL", "Radio.RecallMemory"},
	{"CW KEY", "Transmitter.CWRing.Enqueue"},
	{"CAPTURE", "Radio.SetCaptureState"},
	{"ZOOM+", "Receiver.SetZoom"},
	{"ZOOM-", "Receiver.SetZoom"},
	{"PAN", "Receiver.SetPan"},
}

func printActionTest() {
	fmt.Println("action test table:")
	for _, a := range actionTable {
		fmt.Printf("  %-12s -> %s\n", a.Name, a.Target)
	}
}
