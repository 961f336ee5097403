package common

import (
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/mfskit"
)

// UnitID is the index of an allocation unit, such as a block or cluster.
type UnitID uint32

// UsageMap is a bitmap recording which allocation units have been claimed. Unit
// numbering starts at an arbitrary first unit, since some file systems reserve
// the lowest indices for sentinel values.
type UsageMap struct {
	inUse      bitmap.Bitmap
	firstUnit  UnitID
	totalUnits uint
}

// NewUsageMap creates a usage map covering units [firstUnit, firstUnit+totalUnits)
// with every unit marked free.
func NewUsageMap(firstUnit UnitID, totalUnits uint) *UsageMap {
	return &UsageMap{
		inUse:      bitmap.New(int(totalUnits)),
		firstUnit:  firstUnit,
		totalUnits: totalUnits,
	}
}

// TotalUnits returns the number of units the map covers.
func (m *UsageMap) TotalUnits() uint {
	return m.totalUnits
}

func (m *UsageMap) bitIndex(unit UnitID) (int, error) {
	if unit < m.firstUnit || uint(unit-m.firstUnit) >= m.totalUnits {
		return -1, mfskit.ErrArgumentOutOfRange.WithMessage(
			fmt.Sprintf(
				"invalid unit id: %d not in range [%d, %d)",
				unit,
				m.firstUnit,
				uint(m.firstUnit)+m.totalUnits,
			),
		)
	}
	return int(unit - m.firstUnit), nil
}

// MarkInUse claims a unit. Claiming a unit that's already in use returns an
// error with the errno code EALREADY, and the map is left unchanged.
func (m *UsageMap) MarkInUse(unit UnitID) error {
	index, err := m.bitIndex(unit)
	if err != nil {
		return err
	}
	if m.inUse.Get(index) {
		return mfskit.ErrAlreadyInProgress.WithMessage(
			fmt.Sprintf("unit %d is already in use", unit))
	}
	m.inUse.Set(index, true)
	return nil
}

// IsInUse reports whether a unit has been claimed. Units outside the map are
// never in use.
func (m *UsageMap) IsInUse(unit UnitID) bool {
	index, err := m.bitIndex(unit)
	if err != nil {
		return false
	}
	return m.inUse.Get(index)
}

// CountInUse returns the number of claimed units.
func (m *UsageMap) CountInUse() uint {
	total := uint(0)
	for i := 0; i < int(m.totalUnits); i++ {
		if m.inUse.Get(i) {
			total++
		}
	}
	return total
}

// LongestRun finds the longest contiguous run of units whose in-use state is
// `value`. It returns the first unit of the run and its length, which is 0 if
// there is no such unit.
func (m *UsageMap) LongestRun(value bool) (UnitID, uint) {
	bestStart := m.firstUnit
	bestLength := uint(0)
	runStart := 0
	runLength := uint(0)

	for i := 0; i < int(m.totalUnits); i++ {
		if m.inUse.Get(i) != value {
			runLength = 0
			continue
		}

		runLength++
		if runLength == 1 {
			runStart = i
		}
		if runLength > bestLength {
			bestLength = runLength
			bestStart = m.firstUnit + UnitID(runStart)
		}
	}
	return bestStart, bestLength
}
