package main

import (
	"flag"
	"os"

	"github.com/germanamz/assistant/pkg/tools/mcpserver"
)

func runMCP(args []string) error {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	common := addCommonFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel, eng, err := startEngine(common, newLogger(*common.debug))
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = eng.Close() }()

	srv := mcpserver.New("assistant", version, eng.Platform())
	srv.Register(eng.Tools())

	return srv.Serve(ctx, os.Stdin, os.Stdout)
}
