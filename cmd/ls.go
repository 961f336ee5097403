package main

import (
	"fmt"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/urfave/cli/v2"
)

const listingTimeFormat = "Jan 02 2006 15:04"

// listingRecord is one row of `ls --csv`.
type listingRecord struct {
	Name         string    `csv:"name"`
	FileNumber   uint32    `csv:"file_number"`
	Type         string    `csv:"type"`
	Creator      string    `csv:"creator"`
	DataSize     uint32    `csv:"data_size"`
	ResourceSize uint32    `csv:"resource_size"`
	Locked       bool      `csv:"locked"`
	CreatedAt    time.Time `csv:"created_at"`
	ModifiedAt   time.Time `csv:"modified_at"`
}

func listFiles(ctx *cli.Context) error {
	err := requireArgs(ctx, 1)
	if err != nil {
		return err
	}

	volume, _, err := mountImage(ctx, ctx.Args().Get(0))
	if err != nil {
		return err
	}
	defer volume.Close()

	entries, err := volume.ReadDir()
	if err != nil {
		return err
	}

	output := ctx.App.Writer
	if ctx.Bool("csv") {
		records := make([]listingRecord, len(entries))
		for i := range entries {
			entry := &entries[i]
			records[i] = listingRecord{
				Name:         entry.DisplayName(),
				FileNumber:   entry.FileNumber,
				Type:         entry.TypeCode(),
				Creator:      entry.CreatorCode(),
				DataSize:     entry.DataLogicalSize,
				ResourceSize: entry.ResourceLogicalSize,
				Locked:       entry.IsLocked(),
				CreatedAt:    entry.CreatedTime(),
				ModifiedAt:   entry.ModifiedTime(),
			}
		}
		return gocsv.Marshal(records, output)
	}

	descriptor := volume.Descriptor()
	fmt.Fprintf(
		output,
		"Volume %q: %d files, %d of %d blocks free\n",
		descriptor.Label(),
		len(entries),
		descriptor.FreeBlockCount,
		descriptor.AllocBlockCount,
	)
	fmt.Fprintln(output, "fsize    rsize    ctime              mtime              name")
	for i := range entries {
		entry := &entries[i]
		fmt.Fprintf(
			output,
			"%08d %08d %s  %s  %s\n",
			entry.DataLogicalSize,
			entry.ResourceLogicalSize,
			entry.CreatedTime().Format(listingTimeFormat),
			entry.ModifiedTime().Format(listingTimeFormat),
			entry.DisplayName(),
		)
	}
	return nil
}
