package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/mfskit"
)

// newApp builds the command line interface. Output goes to the app's Writer and
// ErrWriter so the commands can be run in-process.
func newApp() *cli.App {
	return &cli.App{
		Name:  "mfstool",
		Usage: "Read files from Macintosh File System (MFS) disk images",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:    "partition-offset",
				Usage:   "byte offset of the volume within the image",
				EnvVars: []string{"MFSTOOL_PARTITION_OFFSET"},
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "verify the directory reservation in the allocation map when mounting",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List the files on a volume",
				Action:    listFiles,
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "csv", Usage: "print the listing as CSV"},
				},
			},
			{
				Name:      "extract",
				Usage:     "Copy one fork of a file out of a volume",
				Action:    extractFile,
				ArgsUsage: "IMAGE NAME OUTPUT",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "resource", Usage: "extract the resource fork"},
					&cli.BoolFlag{Name: "binhex", Usage: "write both forks as a BinHex 4.0 file"},
				},
			},
			{
				Name:      "info",
				Usage:     "Show the volume information block",
				Action:    showVolumeInfo,
				ArgsUsage: "IMAGE",
			},
			{
				Name:      "check",
				Usage:     "Check the consistency of a volume",
				Action:    checkVolume,
				ArgsUsage: "IMAGE",
			},
			{
				Name:      "unwrap",
				Usage:     "Extract the raw disk image from a DiskCopy 4.2 image",
				Action:    unwrapDiskCopy,
				ArgsUsage: "INPUT OUTPUT",
			},
			{
				Name:      "zip-image",
				Usage:     "Compress a raw image using RLE8 and gzip",
				Action:    zipImage,
				ArgsUsage: "INPUT OUTPUT",
			},
			{
				Name:      "unzip-image",
				Usage:     "Expand an image compressed with RLE8 and gzip",
				Action:    unzipImage,
				ArgsUsage: "INPUT OUTPUT",
			},
			{
				Name:      "serve",
				Usage:     "Serve the files on a volume over HTTP",
				Action:    serveVolume,
				ArgsUsage: "IMAGE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Value:   "127.0.0.1:8080",
						Usage:   "address to listen on",
						EnvVars: []string{"MFSTOOL_LISTEN"},
					},
				},
			},
		},
	}
}

func main() {
	err := newApp().Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error [%s]: %s", mfskit.ErrnoOf(err).Name(), err.Error())
	}
}
