package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/mfskit"
	"github.com/dargueta/mfskit/driver"
	"github.com/dargueta/mfskit/file_systems/common/basicstream"
	"github.com/dargueta/mfskit/file_systems/mfs"
	"github.com/dargueta/mfskit/utilities/binhex"
)

func extractFile(ctx *cli.Context) error {
	err := requireArgs(ctx, 3)
	if err != nil {
		return err
	}
	name := ctx.Args().Get(1)
	outputPath := ctx.Args().Get(2)

	volume, _, err := mountImage(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer volume.Close()

	if ctx.Bool("binhex") {
		return extractBinHex(ctx, volume, name, outputPath)
	}

	fork := mfskit.DataFork
	if ctx.Bool("resource") {
		fork = mfskit.ResourceFork
	}
	reader, err := volume.OpenFork(name, fork)
	if err != nil {
		return fmt.Errorf("can't open %s fork of %q: %w", fork, name, err)
	}
	stream := basicstream.New(reader)
	defer stream.Close()

	var written int64
	err = writeOutputFile(outputPath, func(output io.Writer) error {
		written, err = stream.WriteTo(output)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed after %d of %d bytes: %w", written, stream.Size(), err)
	}

	fmt.Fprintf(ctx.App.Writer, "Extracted %d bytes from the %s fork of %q.\n", written, fork, name)
	return nil
}

func extractBinHex(ctx *cli.Context, volume *mfs.Volume, name, outputPath string) error {
	files := driver.New(volume)

	data, err := files.ReadFile(name)
	if err != nil {
		return err
	}
	resource, err := files.ReadFile(name + driver.ResourceForkSuffix)
	if err != nil {
		return err
	}

	info, err := files.Stat(name)
	if err != nil {
		return err
	}
	stat, ok := info.Sys().(mfskit.FileStat)
	if !ok {
		return errors.New("file information has an unexpected type")
	}

	archive := &binhex.File{Data: data, Resource: resource}
	encoded := [][]byte{nil, nil, nil}
	for i, text := range []string{name, stat.TypeCode, stat.CreatorCode} {
		encoded[i], err = mfs.EncodeName(text)
		if err != nil {
			return fmt.Errorf("can't convert %q to Mac OS Roman: %w", text, err)
		}
	}
	archive.Name = encoded[0]
	copy(archive.TypeCode[:], encoded[1])
	copy(archive.CreatorCode[:], encoded[2])

	err = writeOutputFile(outputPath, func(output io.Writer) error {
		return binhex.Encode(output, archive)
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(
		ctx.App.Writer,
		"Wrote %q as BinHex: %d data bytes, %d resource bytes.\n",
		name,
		len(data),
		len(resource),
	)
	return nil
}
