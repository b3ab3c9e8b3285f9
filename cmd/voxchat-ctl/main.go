package main

import (
	"errors"
	"fmt"
	"os"
	"slices"

	cli "github.com/spf13/pflag"

	"voxchat/internal/ipc"
)

func main() {
	socket := cli.StringP("socket", "S", ipc.DefaultSocketPath, "Control socket of the daemon")
	cli.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: voxchat-ctl [--socket path] start|stop|send|playback")
		cli.PrintDefaults()
	}
	cli.Parse()

	if cli.NArg() != 1 || !slices.Contains(ipc.Commands, cli.Arg(0)) {
		cli.Usage()
		os.Exit(2)
	}

	err := ipc.SendCommand(*socket, cli.Arg(0))
	switch {
	case errors.Is(err, ipc.ErrRefused):
		fmt.Println("voxchat:", err)
		os.Exit(1)
	case err != nil:
		fmt.Println("voxchat not running:", err)
		os.Exit(1)
	}
}
