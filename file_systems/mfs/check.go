package mfs

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/dargueta/mfskit"
	c "github.com/dargueta/mfskit/file_systems/common"
)

// CheckReport summarizes a consistency check of a volume.
type CheckReport struct {
	FilesChecked int
	// BlocksInUse is the number of blocks claimed by the forks of valid files.
	BlocksInUse uint
	// FreeBlocks is the number of blocks the allocation map marks free.
	FreeBlocks uint
	// LongestFreeRun is the length of the longest run of consecutive blocks not
	// claimed by any file.
	LongestFreeRun uint
	Problems       []error
}

// Err combines all problems into a single error, or returns nil if the volume
// is consistent.
func (report *CheckReport) Err() error {
	if len(report.Problems) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, problem := range report.Problems {
		result = multierror.Append(result, problem)
	}
	return result
}

func (report *CheckReport) addProblem(format string, args ...any) {
	report.Problems = append(
		report.Problems,
		mfskit.ErrCorruptVolume.WithMessage(fmt.Sprintf(format, args...)),
	)
}

// Check walks the block chains of both forks of every valid file and compares
// them against the allocation map and the volume information block. Structural
// problems are collected in the report; the returned error is only set if the
// check couldn't be run at all, e.g. because the device failed.
func (volume *Volume) Check() (*CheckReport, error) {
	entries, err := volume.ReadDir()
	if err != nil {
		return nil, err
	}

	descriptor := volume.descriptor
	report := &CheckReport{FilesChecked: len(entries)}
	usage := c.NewUsageMap(FirstAllocBlock, uint(descriptor.AllocBlockCount))
	owners := make(map[uint16]string)

	for i := range entries {
		for _, fork := range []mfskit.Fork{mfskit.DataFork, mfskit.ResourceFork} {
			err = volume.checkForkChain(&entries[i], fork, usage, owners, report)
			if err != nil {
				return nil, err
			}
		}
	}

	report.BlocksInUse = usage.CountInUse()
	_, report.LongestFreeRun = usage.LongestRun(false)

	report.FreeBlocks, err = volume.allocMap.CountFree()
	if err != nil {
		return nil, err
	}
	if report.FreeBlocks != uint(descriptor.FreeBlockCount) {
		report.addProblem(
			"allocation map has %d free blocks but the volume header says %d",
			report.FreeBlocks,
			descriptor.FreeBlockCount,
		)
	}

	lastBlock := uint(descriptor.AllocBlockCount) + 1
	for i := uint(FirstAllocBlock); i <= lastBlock; i++ {
		block := uint16(i)
		entry, err := volume.allocMap.Entry(block)
		if err != nil {
			return nil, err
		}
		inUse := usage.IsInUse(c.UnitID(block))

		if entry == FreeBlock && inUse {
			report.addProblem("block %d is used by %q but marked free", block, owners[block])
		} else if entry != FreeBlock && entry != DirectoryBlock && !inUse {
			report.addProblem("block %d is allocated but no file uses it", block)
		}
	}

	return report, nil
}

func (volume *Volume) checkForkChain(
	entry *DirectoryEntry,
	fork mfskit.Fork,
	usage *c.UsageMap,
	owners map[uint16]string,
	report *CheckReport,
) error {
	info := entry.Fork(fork)
	name := entry.DisplayName()
	blockSize := uint64(volume.descriptor.AllocBlockSize)
	expectedBlocks := (uint64(info.PhysicalSize) + blockSize - 1) / blockSize

	if info.StartBlock == 0 {
		if info.PhysicalSize != 0 {
			report.addProblem(
				"%s fork of %q has %d physical bytes but no start block",
				fork,
				name,
				info.PhysicalSize)
		}
		return nil
	}
	if !volume.descriptor.IsValidBlock(info.StartBlock) {
		report.addProblem(
			"%s fork of %q starts at invalid block %d", fork, name, info.StartBlock)
		return nil
	}

	block := info.StartBlock
	chainLength := uint64(0)
	for {
		chainLength++
		err := usage.MarkInUse(c.UnitID(block))
		if err != nil {
			if !errors.Is(err, mfskit.ErrAlreadyInProgress) {
				return err
			}
			report.addProblem(
				"block %d of the %s fork of %q is also used by %q",
				block,
				fork,
				name,
				owners[block])
			// Following a cross-linked chain could loop forever.
			return nil
		}
		owners[block] = name

		next, ok, err := volume.allocMap.Next(block)
		if err != nil {
			return err
		}
		if !ok {
			if next != LastBlock {
				report.addProblem(
					"%s fork of %q: block %d links to invalid map entry 0x%03x",
					fork,
					name,
					block,
					next)
			}
			break
		}
		block = next
	}

	if chainLength != expectedBlocks {
		report.addProblem(
			"%s fork of %q has %d blocks but its physical size requires %d",
			fork,
			name,
			chainLength,
			expectedBlocks)
	}
	return nil
}
