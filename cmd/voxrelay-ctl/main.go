package main

import (
	"fmt"
	"os"

	cli "github.com/spf13/pflag"

	"voxrelay/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "s", ipc.DefaultSocketPath(), "Agent control socket")
	cli.Parse()

	cmd := ipc.CmdTrigger
	if cli.NArg() > 0 {
		cmd = cli.Arg(0)
	}

	if err := ipc.Send(*socket, cmd); err != nil {
		fmt.Fprintln(os.Stderr, "voxrelay-agent:", err)
		os.Exit(1)
	}
}
