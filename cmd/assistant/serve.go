package main

import (
	"flag"

	"github.com/germanamz/assistant/pkg/server"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	common := addCommonFlags(fs)
	addr := fs.String("addr", ":8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(*common.debug)

	ctx, cancel, eng, err := startEngine(common, logger)
	if err != nil {
		return err
	}
	defer cancel()
	defer func() { _ = eng.Close() }()

	go eng.Run(ctx)

	opts := server.Options{Logger: logger}
	if eng.CanIngest() {
		opts.Knowledge = eng
	}

	return server.New(eng, opts).ListenAndServe(ctx, *addr)
}
