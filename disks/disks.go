// Package disks describes the physical media Macintosh volumes were stored on.
package disks

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"

	"github.com/dargueta/mfskit"
	"github.com/gocarina/gocsv"
)

type DiskGeometry struct {
	Name               string `csv:"name"`
	Slug               string `csv:"slug"`
	FirstYearAvailable uint   `csv:"first_year_available"`
	FormFactor         string `csv:"form_factor"`
	IsRemovable        bool   `csv:"is_removable"`
	BytesPerSector     uint   `csv:"bytes_per_sector"`
	// TotalSectors is the number of data sectors on the medium. Macintosh GCR
	// floppies vary the number of sectors per track, so this can't be derived
	// from the track count.
	TotalSectors uint `csv:"total_sectors"`
	Tracks       uint `csv:"tracks"`
	Heads        uint `csv:"heads"`
	// TagBytesPerSector is the size of the out-of-band tag data that accompanies
	// each sector, if the medium has any. Disk image containers store it
	// separately from the sector data.
	TagBytesPerSector uint   `csv:"tag_bytes_per_sector"`
	NativeFileSystem  string `csv:"native_file_system"`
	Notes             string `csv:"notes"`
}

// TotalSizeBytes gives the size of the data area of the medium. This is the size
// of a raw image file.
func (g *DiskGeometry) TotalSizeBytes() int64 {
	return int64(g.BytesPerSector) * int64(g.TotalSectors)
}

// TotalTagBytes gives the size of the tag data for the entire medium.
func (g *DiskGeometry) TotalTagBytes() int64 {
	return int64(g.TagBytesPerSector) * int64(g.TotalSectors)
}

//go:embed disk-geometries.csv
var diskGeometriesRawCSV string
var diskGeometries map[string]DiskGeometry

// GetPredefinedDiskGeometry returns the geometry with the given slug, such as
// "mac-400k".
func GetPredefinedDiskGeometry(slug string) (DiskGeometry, error) {
	geometry, ok := diskGeometries[slug]
	if ok {
		return geometry, nil
	}
	return DiskGeometry{}, mfskit.ErrNotFound.WithMessage(
		fmt.Sprintf("no predefined disk geometry exists with slug %q", slug))
}

// FindGeometryBySize returns the geometry of the medium whose raw image is
// exactly `size` bytes, if any.
func FindGeometryBySize(size int64) (DiskGeometry, bool) {
	for _, geometry := range AllGeometries() {
		if geometry.TotalSizeBytes() == size {
			return geometry, true
		}
	}
	return DiskGeometry{}, false
}

// AllGeometries returns every known geometry, smallest first.
func AllGeometries() []DiskGeometry {
	result := make([]DiskGeometry, 0, len(diskGeometries))
	for _, geometry := range diskGeometries {
		result = append(result, geometry)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].TotalSizeBytes() != result[j].TotalSizeBytes() {
			return result[i].TotalSizeBytes() < result[j].TotalSizeBytes()
		}
		return result[i].Slug < result[j].Slug
	})
	return result
}

func init() {
	csvReader := csv.NewReader(strings.NewReader(diskGeometriesRawCSV))
	csvReader.Comma = '|'

	var rows []DiskGeometry
	err := gocsv.UnmarshalCSV(csvReader, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode disk geometries: %w", err))
	}

	diskGeometries = make(map[string]DiskGeometry, len(rows))
	for i, row := range rows {
		_, exists := diskGeometries[row.Slug]
		if exists {
			panic(
				fmt.Errorf("duplicate definition for disk %q found on row %d", row.Slug, i+1))
		}
		diskGeometries[row.Slug] = row
	}
}
