// Command renodectl is an interactive client for a Renode external
// control session: it connects to an already-running instance, or
// launches one itself, then drives the control and monitor channels from
// a REPL.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/renode-extcontrol/go-client/renodeclient/launcher"
)

const version = "0.1.0"

type arguments struct {
	control    string
	monitor    string
	launch     string
	script     string
	disableGUI bool
	showHelp   bool
	showVer    bool
}

func parseArguments() arguments {
	var a arguments
	flag.StringVar(&a.control, "control", "", "control host:port to connect to (skip if using -launch)")
	flag.StringVar(&a.monitor, "monitor", "", "monitor host:port to connect to (skip if using -launch)")
	flag.StringVar(&a.launch, "launch", "", "path to a Renode executable to launch instead of connecting")
	flag.StringVar(&a.script, "script", "", ".resc script to pass to a launched Renode")
	flag.BoolVar(&a.disableGUI, "disable-gui", true, "pass --disable-gui to a launched Renode")
	flag.BoolVar(&a.showHelp, "help", false, "show usage and exit")
	flag.BoolVar(&a.showVer, "version", false, "show version and exit")
	flag.Parse()
	return a
}

func printUsage() {
	fmt.Println("renodectl — interactive client for Renode's external control protocol")
	fmt.Println()
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Printf("renodectl %s\n", version)
}

func main() {
	args := parseArguments()

	if args.showHelp {
		printUsage()
		return
	}
	if args.showVer {
		printVersion()
		return
	}

	var proc *launcher.Process
	controlAddr, monitorAddr := args.control, args.monitor

	if args.launch != "" {
		p, addr, monAddr, err := launchRenode(args)
		if err != nil {
			fmt.Fprintf(os.Stderr, "launch: %v\n", err)
			os.Exit(1)
		}
		proc = p
		controlAddr, monitorAddr = addr, monAddr
	}

	if controlAddr == "" || monitorAddr == "" {
		fmt.Fprintln(os.Stderr, "either -launch, or both -control and -monitor, are required")
		os.Exit(1)
	}

	cleanup := func() {
		if proc != nil {
			proc.Stop()
		}
	}
	setupSignalHandler(cleanup)
	defer cleanup()

	fmt.Printf("renodectl %s\n", version)
	if controlAddr != "" && args.launch == "" {
		fmt.Printf("use .connect %s %s to begin\n", controlAddr, monitorAddr)
	}

	runREPL()
}

// launchRenode starts a Renode subprocess on fixed loopback ports and
// returns its control/monitor addresses once both are reachable.
func launchRenode(args arguments) (*launcher.Process, string, string, error) {
	const controlPort, monitorPort = 5555, 5556
	cfg := launcher.Config{
		Executable:  args.launch,
		ScriptPath:  args.script,
		Port:        controlPort,
		MonitorPort: monitorPort,
		DisableGUI:  args.disableGUI,
	}
	proc, err := launcher.Launch(cfg)
	if err != nil {
		return nil, "", "", err
	}
	return proc, fmt.Sprintf("127.0.0.1:%d", controlPort), fmt.Sprintf("127.0.0.1:%d", monitorPort), nil
}

// setupSignalHandler runs cleanup once and exits when SIGINT or SIGTERM
// arrives, matching the teacher's polite shutdown on Ctrl-C.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cleanup()
		os.Exit(0)
	}()
}
