package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"

	"github.com/sinvec/gimp-kandinsky/core"
)

const serviceStopTimeout = 60 * time.Second

// Program adapts runServer to the service manager's Start/Stop lifecycle.
type Program struct {
	cancel context.CancelFunc
	exit   chan struct{}
	code   int
}

// Start launches the server in the background and returns immediately.
func (p *Program) Start(s service.Service) error {
	var ctx context.Context
	ctx, p.cancel = context.WithCancel(context.Background())
	p.exit = make(chan struct{})

	go func() {
		defer close(p.exit)
		p.code = runServer(ctx)
	}()
	return nil
}

// Stop triggers a graceful shutdown and waits up to serviceStopTimeout for
// it.
func (p *Program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.exit:
		if p.code != 0 {
			return fmt.Errorf("server exited with code %d", p.code)
		}
		return nil
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("timeout waiting for service to stop")
	}
}

// ServiceConfig describes the service. It runs from the executable's
// directory so the .env file next to it is found.
func ServiceConfig() *service.Config {
	cfg := &service.Config{
		Name:        "KandinskyInpaint",
		DisplayName: "Kandinsky Inpainting Server",
		Description: "Serves Kandinsky 2.2 inpainting jobs to the GIMP plugin",
		Option: service.KeyValue{
			"StartType": "automatic",
			"Restart":   "on-failure",
		},
	}
	if exe, err := os.Executable(); err == nil {
		cfg.WorkingDirectory = filepath.Dir(exe)
	}
	return cfg
}

func newService() (service.Service, error) {
	s, err := service.New(&Program{}, ServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

// RunAsService runs under the service manager when not started from a
// terminal. It reports false when the process is interactive.
func RunAsService() (bool, error) {
	if service.Interactive() {
		return false, nil
	}

	s, err := newService()
	if err != nil {
		return false, err
	}
	if err := s.Run(); err != nil {
		return true, fmt.Errorf("service run failed: %w", err)
	}
	return true, nil
}

// PrintServiceUsage writes the service command help.
func PrintServiceUsage(w io.Writer) {
	fmt.Fprintln(w, "Kandinsky inpainting server")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: gimp-kandinsky [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  install    Install as a system service")
	fmt.Fprintln(w, "  uninstall  Remove the system service (alias: remove)")
	fmt.Fprintln(w, "  start      Start the service")
	fmt.Fprintln(w, "  stop       Stop the service")
	fmt.Fprintln(w, "  restart    Restart the service")
	fmt.Fprintln(w, "  status     Show the service status")
	fmt.Fprintln(w, "  version    Show build information")
	fmt.Fprintln(w, "  help       Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run without arguments to start the server in the foreground.")
}

// HandleServiceCommand runs a service management command from args[1]. It
// reports whether args named one.
func HandleServiceCommand(args []string, out io.Writer) (bool, error) {
	if len(args) < 2 {
		return false, nil
	}

	switch cmd := args[1]; cmd {
	case "install", "uninstall", "remove", "start", "stop", "restart":
		if cmd == "remove" {
			cmd = "uninstall"
		}
		s, err := newService()
		if err != nil {
			return true, err
		}
		if err := service.Control(s, cmd); err != nil {
			return true, fmt.Errorf("service %s: %w", cmd, err)
		}
		fmt.Fprintf(out, "Service %s completed\n", cmd)
		return true, nil

	case "status":
		s, err := newService()
		if err != nil {
			return true, err
		}
		status, err := s.Status()
		if err != nil {
			return true, fmt.Errorf("failed to get service status: %w", err)
		}
		fmt.Fprintln(out, serviceStatusText(status))
		return true, nil

	case "version", "-version", "--version":
		fmt.Fprintln(out, "gimp-kandinsky "+core.GetVersionInfo())
		return true, nil

	case "help", "-h", "--help", "-help":
		PrintServiceUsage(out)
		return true, nil
	}
	return false, nil
}

func serviceStatusText(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Service is running"
	case service.StatusStopped:
		return "Service is stopped"
	default:
		return "Service status unknown"
	}
}
