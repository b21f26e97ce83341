package util

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dsnet/golib/unitconv"
	"github.com/thinkparq/devicemapper-go/dm"
)

const sectorSize = 512

// ParseTarget parses one mapping table line in the kernel's format:
//
//	<start-sector> <num-sectors> <target-type> [<params>...]
//
// Start and length are 512-byte sector counts. Everything after the target type is passed to the
// target verbatim.
func ParseTarget(line string) (dm.Target, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return dm.Target{}, fmt.Errorf("invalid table line %q, must be `<start> <length> <type> [<params>...]`", line)
	}
	start, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return dm.Target{}, fmt.Errorf("invalid start sector %q: %w", fields[0], err)
	}
	length, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return dm.Target{}, fmt.Errorf("invalid sector count %q: %w", fields[1], err)
	}
	return dm.Target{
		Start:  start,
		Length: length,
		Type:   fields[2],
		Params: strings.Join(fields[3:], " "),
	}, nil
}

// ReadTargets reads a whole mapping table, one target per line. Blank lines and lines starting
// with '#' are skipped so tables can be kept in commented files.
func ReadTargets(r io.Reader) ([]dm.Target, error) {
	var targets []dm.Target
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		t, err := ParseTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		targets = append(targets, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("the table did not contain any targets")
	}
	return targets, nil
}

// SectorsToHuman renders a 512-byte sector count as an IEC size (e.g., "16.0MiB"). Callers that
// honor the raw output mode should print the plain sector count instead.
func SectorsToHuman(sectors uint64) string {
	return unitconv.FormatPrefix(float64(sectors)*sectorSize, unitconv.IEC, 1) + "B"
}
