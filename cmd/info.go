package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/mfskit/disks"
)

func showVolumeInfo(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	volume, image, err := mountImage(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer volume.Close()

	descriptor := volume.Descriptor()
	output := ctx.App.Writer

	container := "raw"
	if len(image.Containers) > 0 {
		container = strings.Join(image.Containers, ", ")
	}

	fmt.Fprintf(output, "Volume name:         %s\n", descriptor.Label())
	fmt.Fprintf(output, "Container:           %s\n", container)
	fmt.Fprintf(output, "Created:             %s\n", descriptor.CreatedTime().Format(listingTimeFormat))
	fmt.Fprintf(output, "Last backup:         %s\n", descriptor.LastBackupTime().Format(listingTimeFormat))
	fmt.Fprintf(output, "Locked:              %t\n", descriptor.IsLocked())
	fmt.Fprintf(output, "Files:               %d\n", descriptor.FileCount)
	fmt.Fprintf(output, "Next file number:    %d\n", descriptor.NextFileNumber)
	fmt.Fprintf(
		output,
		"Directory:           sectors %d-%d\n",
		descriptor.DirectoryStart,
		uint(descriptor.DirectoryStart)+uint(descriptor.DirectoryLength)-1,
	)
	fmt.Fprintf(output, "Allocation blocks:   %d of %d bytes\n", descriptor.AllocBlockCount, descriptor.AllocBlockSize)
	fmt.Fprintf(output, "Free blocks:         %d\n", descriptor.FreeBlockCount)
	fmt.Fprintf(output, "Clump size:          %d\n", descriptor.ClumpSize)
	fmt.Fprintf(output, "First data sector:   %d\n", descriptor.FirstAllocSector)

	geometry, found := disks.FindGeometryBySize(int64(len(image.Data)))
	if found {
		fmt.Fprintf(output, "Medium:              %s (%s)\n", geometry.Name, geometry.Slug)
	} else {
		fmt.Fprintf(output, "Medium:              unknown (%d bytes)\n", len(image.Data))
	}
	return nil
}
