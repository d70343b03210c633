package wal

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
)

const segmentFileExt = ".log"

var segmentFileNamePattern = regexp.MustCompile(`^segment-(\d+)\.log$`)

// segmentFileName builds the teacher's segmentmanager naming
// convention ("segment-%04d.log") for segment id.
func segmentFileName(id int) string {
	return fmt.Sprintf("segment-%04d%s", id, segmentFileExt)
}

// listSegments returns every WAL segment id present in dir, ascending,
// adapted from the teacher's segmentmanager.NewDiskSegmentManager
// directory-scan/regex-match/sort discovery. A missing dir is reported
// as no segments rather than an error.
func listSegments(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wal: read directory %s: %w", dir, err)
	}

	var ids []int
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		matches := segmentFileNamePattern.FindStringSubmatch(e.Name())
		if len(matches) != 2 {
			continue
		}
		id, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
