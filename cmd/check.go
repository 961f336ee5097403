package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

func checkVolume(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	volume, _, err := mountImage(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer volume.Close()

	report, err := volume.Check()
	if err != nil {
		return err
	}

	output := ctx.App.Writer
	fmt.Fprintf(output, "Files checked:     %d\n", report.FilesChecked)
	fmt.Fprintf(output, "Blocks in use:     %d\n", report.BlocksInUse)
	fmt.Fprintf(output, "Blocks free:       %d\n", report.FreeBlocks)
	fmt.Fprintf(output, "Longest free run:  %d\n", report.LongestFreeRun)

	if len(report.Problems) == 0 {
		fmt.Fprintln(output, "No problems found.")
		return nil
	}

	logger := newLogger(ctx)
	for _, problem := range report.Problems {
		logger.Println(problem)
	}
	return fmt.Errorf("found %d problems", len(report.Problems))
}
