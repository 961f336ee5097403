package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/mfskit/file_systems/mfs"
	"github.com/dargueta/mfskit/utilities/compression"
	"github.com/dargueta/mfskit/utilities/diskcopy"
)

// loadedImage is a disk image read into memory, with any container formats
// removed.
type loadedImage struct {
	Path string
	// Containers lists the wrappers that were removed, outermost first.
	Containers []string
	Data       []byte
}

// loadImage reads an image file, expanding it if it was compressed with
// [compression.CompressImage] and unwrapping it if it's a DiskCopy 4.2 image.
func loadImage(path string) (*loadedImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	image := &loadedImage{Path: path, Data: data}
	if compression.IsCompressedImage(image.Data) {
		image.Data, err = compression.DecompressImageToBytes(bytes.NewReader(image.Data))
		if err != nil {
			return nil, fmt.Errorf("can't expand %q: %w", path, err)
		}
		image.Containers = append(image.Containers, "rle8+gzip")
	}

	reader := bytes.NewReader(image.Data)
	if diskcopy.Detect(reader, reader.Size()) {
		image.Data, err = readDiskCopyData(reader)
		if err != nil {
			return nil, fmt.Errorf("can't unwrap %q: %w", path, err)
		}
		image.Containers = append(image.Containers, "diskcopy-4.2")
	}
	return image, nil
}

func readDiskCopyData(reader *bytes.Reader) ([]byte, error) {
	wrapped, err := diskcopy.Open(reader, reader.Size())
	if err != nil {
		return nil, err
	}

	data := make([]byte, wrapped.Data.Size())
	_, err = io.ReadFull(wrapped.Data, data)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// mountImage loads an image and mounts the MFS volume in it using the global
// options.
func mountImage(ctx *cli.Context, path string) (*mfs.Volume, *loadedImage, error) {
	image, err := loadImage(path)
	if err != nil {
		return nil, nil, err
	}

	options := mfs.Options{
		PartitionOffset:     ctx.Int64("partition-offset"),
		VerifyAllocationMap: ctx.Bool("strict"),
	}
	volume, err := mfs.Mount(bytes.NewReader(image.Data), options)
	if err != nil {
		return nil, nil, fmt.Errorf("can't mount %q: %w", path, err)
	}
	return volume, image, nil
}

// requireArgs fails unless exactly `count` positional arguments were given.
func requireArgs(ctx *cli.Context, count int) error {
	if ctx.NArg() != count {
		return fmt.Errorf(
			"%s: expected %d arguments, got %d (usage: %s %s)",
			ctx.Command.Name,
			count,
			ctx.NArg(),
			ctx.Command.Name,
			ctx.Command.ArgsUsage,
		)
	}
	return nil
}

func newLogger(ctx *cli.Context) *log.Logger {
	return log.New(ctx.App.ErrWriter, ctx.App.Name+": ", 0)
}
