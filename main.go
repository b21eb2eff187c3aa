// Command gimp-kandinsky serves Kandinsky 2.2 inpainting to the GIMP plugin.
//
// One worker owns the model and runs one job at a time; HTTP handlers submit
// jobs, report progress and hand back results through shared job state.
//
// Usage:
//
//	gimp-kandinsky            run in the foreground
//	gimp-kandinsky install    register as a system service (see "help")
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	handled, err := HandleServiceCommand(os.Args, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if handled {
		return
	}

	isService, err := RunAsService()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if isService {
		return
	}

	os.Exit(runServer(context.Background()))
}
