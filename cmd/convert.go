package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/mfskit/utilities/compression"
	"github.com/dargueta/mfskit/utilities/diskcopy"
)

func unwrapDiskCopy(ctx *cli.Context) error {
	err := requireArgs(ctx, 2)
	if err != nil {
		return err
	}

	input, err := os.Open(ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer input.Close()

	info, err := input.Stat()
	if err != nil {
		return err
	}

	image, err := diskcopy.Open(input, info.Size())
	if err != nil {
		return err
	}

	var written int64
	err = writeOutputFile(ctx.Args().Get(1), func(output io.Writer) error {
		written, err = io.Copy(output, image.Data)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(
		ctx.App.Writer,
		"Extracted %d bytes of disk %q from the DiskCopy image.\n",
		written,
		image.Header.DiskName(),
	)
	return nil
}

// convertFile runs `convert` on the files named by the two positional
// arguments.
func convertFile(
	ctx *cli.Context,
	convert func(input io.Reader, output io.Writer) (int64, error),
) (int64, error) {
	err := requireArgs(ctx, 2)
	if err != nil {
		return 0, err
	}

	sourceFilePath := ctx.Args().Get(0)
	outputFilePath := ctx.Args().Get(1)

	sourceFile, err := os.Open(sourceFilePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open file for reading: `%v`: %w", sourceFilePath, err)
	}
	defer sourceFile.Close()

	var written int64
	err = writeOutputFile(outputFilePath, func(output io.Writer) error {
		written, err = convert(sourceFile, output)
		return err
	})
	return written, err
}

// writeOutputFile creates the file at `path` and fills it with `write`. The
// file is always closed, and an error from closing it is returned if nothing
// else failed first.
func writeOutputFile(path string, write func(output io.Writer) error) (err error) {
	output, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to open file for writing: `%v`: %w", path, err)
	}
	defer func() {
		closeErr := output.Close()
		if err == nil && closeErr != nil {
			err = fmt.Errorf("failed to finish writing `%v`: %w", path, closeErr)
		}
	}()

	return write(output)
}

func zipImage(ctx *cli.Context) error {
	nWritten, err := convertFile(ctx, compression.CompressImage)
	if err != nil {
		return fmt.Errorf("error compressing file: %w", err)
	}
	fmt.Fprintf(ctx.App.Writer, "Compressed input file to %d bytes.\n", nWritten)
	return nil
}

func unzipImage(ctx *cli.Context) error {
	nWritten, err := convertFile(ctx, compression.DecompressImage)
	if err != nil {
		return fmt.Errorf("error expanding file: %w", err)
	}
	fmt.Fprintf(ctx.App.Writer, "Expanded input file to %d bytes.\n", nWritten)
	return nil
}
