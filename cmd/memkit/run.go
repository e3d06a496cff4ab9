package main

import (
	"github.com/urfave/cli/v2"
)

var runCommand = &cli.Command{
	Name:   "run",
	Usage:  "Run the workload once and print a report",
	Flags:  workloadFlags,
	Action: runWorkload,
}

func runWorkload(c *cli.Context) error {
	log := newLogger(c)
	r, err := newRunner(c, log)
	if err != nil {
		return err
	}
	results, err := r.Run(c.Context)
	if err != nil {
		return err
	}
	w := c.App.Writer
	writeResults(w, results)
	writePools(w, r.Registry().Snapshot())
	return nil
}
