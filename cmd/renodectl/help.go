package main

import (
	"fmt"
	"sort"
	"strings"
)

// globalHelp covers the dot-commands available regardless of what's
// connected; monitorHelp covers verbs sent through the monitor channel
// once .connect has opened it.
var globalHelp = map[string]string{
	"connect":    ".connect <host:port> <host:monitor-port> — open the control and monitor channels",
	"machine":    ".machine <name> — fetch (or switch to) a named machine",
	"disconnect": ".disconnect — close both channels",
	"quit":       ".quit — exit renodectl",
	"help":       ".help [topic] — list commands, or show detail for one",
}

var monitorHelp = map[string]string{
	"pause":       "pause — suspend the attached machine",
	"start":       "start — resume the attached machine",
	"reset":       "machine Reset — reset the attached machine",
	"peripherals": "peripherals — list discovered peripherals and their bus paths",
}

func printHelpOverview() {
	fmt.Println("Dot-commands:")
	printSorted(globalHelp)
	fmt.Println("\nMonitor verbs (sent as-is once connected):")
	printSorted(monitorHelp)
}

func printSorted(table map[string]string) {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s\n", table[k])
	}
}

func printHelpTopic(topic string) {
	key := strings.ToLower(strings.TrimPrefix(topic, "."))
	if text, ok := globalHelp[key]; ok {
		fmt.Println(text)
		return
	}
	if text, ok := monitorHelp[key]; ok {
		fmt.Println(text)
		return
	}
	fmt.Printf("no help for %q\n", topic)
}
