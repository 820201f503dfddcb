// Package launcher spawns and monitors a Renode subprocess configured for
// external control: launching the executable with the right flags,
// waiting for its control and monitor ports to come up, and tearing it
// down cleanly on Stop.
package launcher

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"
)

// DefaultStartupTimeout bounds how long Launch waits for both ports to
// become dialable before giving up.
const DefaultStartupTimeout = 15 * time.Second

// portPollInterval is how often Launch retries dialing a not-yet-ready
// port while waiting out a Config's StartupTimeout.
const portPollInterval = 100 * time.Millisecond

// Config describes one Renode subprocess to launch.
type Config struct {
	// Executable is the path to the Renode binary. Required.
	Executable string
	// ScriptPath is an optional .resc script to execute on startup.
	ScriptPath string
	// Host is the address Launch dials while waiting for the control and
	// monitor ports; it is not passed to Renode. Defaults to "127.0.0.1"
	// if empty.
	Host string
	// Port is the control channel's TCP port. Required.
	Port int
	// MonitorPort is the monitor channel's TCP port. Required.
	MonitorPort int
	// Console, when true, passes --console. Launch still sends the
	// subprocess's stdout and stderr to the null device.
	Console bool
	// DisableGUI passes Renode's --disable-gui flag, appropriate for
	// headless CI and server use.
	DisableGUI bool
	// StartupTimeout bounds how long Launch waits for both ports to
	// become reachable. Defaults to DefaultStartupTimeout if zero.
	StartupTimeout time.Duration
}

func (c Config) host() string {
	if c.Host == "" {
		return "127.0.0.1"
	}
	return c.Host
}

func (c Config) startupTimeout() time.Duration {
	if c.StartupTimeout <= 0 {
		return DefaultStartupTimeout
	}
	return c.StartupTimeout
}

// args composes the Renode command-line arguments for cfg, following
// spec.md §6's literal template: [--console?] [--disable-gui?]
// [--port <monitorPort>]? [<scriptPath>]?. The executable itself is not
// part of this slice; exec.Command takes it separately.
func (c Config) args() []string {
	var args []string
	if c.Console {
		args = append(args, "--console")
	}
	if c.DisableGUI {
		args = append(args, "--disable-gui")
	}
	args = append(args, "--port", strconv.Itoa(c.MonitorPort))
	if c.ScriptPath != "" {
		args = append(args, c.ScriptPath)
	}
	return args
}

// Process is a running Renode subprocess launched by Launch.
type Process struct {
	cmd    *exec.Cmd
	config Config
}

// Launch starts a Renode subprocess per cfg and blocks until both its
// control and monitor ports accept a TCP connection, or cfg's startup
// timeout expires.
func Launch(cfg Config) (*Process, error) {
	if cfg.Executable == "" {
		return nil, fmt.Errorf("launcher: Executable is required")
	}
	if cfg.Port == 0 || cfg.MonitorPort == 0 {
		return nil, fmt.Errorf("launcher: Port and MonitorPort are required")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("launcher: opening null device: %w", err)
	}
	defer devNull.Close()

	cmd := exec.Command(cfg.Executable, cfg.args()...)
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: failed to start %s: %w", cfg.Executable, err)
	}

	p := &Process{cmd: cmd, config: cfg}

	deadline := time.Now().Add(cfg.startupTimeout())
	if err := waitForPort(cfg.host(), cfg.Port, deadline); err != nil {
		p.Stop()
		return nil, fmt.Errorf("launcher: control port never came up (PID %d): %w", cmd.Process.Pid, err)
	}
	if err := waitForPort(cfg.host(), cfg.MonitorPort, deadline); err != nil {
		p.Stop()
		return nil, fmt.Errorf("launcher: monitor port never came up (PID %d): %w", cmd.Process.Pid, err)
	}

	return p, nil
}

// waitForPort polls addr:port until a TCP dial succeeds or deadline
// passes.
func waitForPort(host string, port int, deadline time.Time) error {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	for {
		conn, err := net.DialTimeout("tcp", addr, portPollInterval)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timed out waiting for %s", addr)
		}
		time.Sleep(portPollInterval)
	}
}

// PID returns the subprocess's OS process identifier.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Stop sends an interrupt signal and waits briefly for the subprocess to
// exit on its own, forcibly killing it after two seconds if it does not.
func (p *Process) Stop() error {
	if p.cmd.Process == nil {
		return nil
	}

	if err := p.cmd.Process.Signal(os.Interrupt); err != nil {
		return p.cmd.Process.Kill()
	}

	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(2 * time.Second):
		if err := p.cmd.Process.Kill(); err != nil {
			return err
		}
		<-done
		return nil
	}
}
