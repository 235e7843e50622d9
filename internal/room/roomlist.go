// Package room implements the fixed-roster room registry: templates
// from the room-list file, per-room membership, chat routing and game
// advertisement fan-out.
package room

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/udisondev/mythmeta/internal/model"
)

// Template is one line of the room-list file: the static definition of
// a lobby slot. Users never create rooms; this file is the full roster.
type Template struct {
	ID        uint16
	GameFlags model.GameFlags
	Ranked    bool
	Country   int16
	MinCaste  model.Caste
	MaxCaste  model.Caste
	Tournament bool
}

// ParseRoomList reads the whitespace-separated room-list format:
//
//	game_name_csv room_id ranked country_code min_caste max_caste tournament
//
// '#' starts a comment, blank lines are skipped. Any malformed line is
// an error; the file is startup-critical configuration.
func ParseRoomList(r io.Reader) ([]Template, error) {
	var rooms []Template
	seen := make(map[uint16]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 7 {
			return nil, fmt.Errorf("room list line %d: expected 7 fields, got %d", lineNo, len(fields))
		}

		flags, err := model.ParseGameNames(fields[0])
		if err != nil {
			return nil, fmt.Errorf("room list line %d: %w", lineNo, err)
		}

		id, err := strconv.ParseUint(fields[1], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("room list line %d: room id: %w", lineNo, err)
		}
		if seen[uint16(id)] {
			return nil, fmt.Errorf("room list line %d: duplicate room id %d", lineNo, id)
		}
		seen[uint16(id)] = true

		ranked, err := parseBool(fields[2])
		if err != nil {
			return nil, fmt.Errorf("room list line %d: ranked: %w", lineNo, err)
		}

		country, err := strconv.ParseInt(fields[3], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("room list line %d: country code: %w", lineNo, err)
		}

		minCaste, err := parseCaste(fields[4])
		if err != nil {
			return nil, fmt.Errorf("room list line %d: min caste: %w", lineNo, err)
		}
		maxCaste, err := parseCaste(fields[5])
		if err != nil {
			return nil, fmt.Errorf("room list line %d: max caste: %w", lineNo, err)
		}
		if minCaste > maxCaste {
			return nil, fmt.Errorf("room list line %d: min caste %d above max caste %d", lineNo, minCaste, maxCaste)
		}

		tournament, err := parseBool(fields[6])
		if err != nil {
			return nil, fmt.Errorf("room list line %d: tournament: %w", lineNo, err)
		}

		rooms = append(rooms, Template{
			ID:         uint16(id),
			GameFlags:  flags,
			Ranked:     ranked,
			Country:    int16(country),
			MinCaste:   minCaste,
			MaxCaste:   maxCaste,
			Tournament: tournament,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading room list: %w", err)
	}
	if len(rooms) == 0 {
		return nil, fmt.Errorf("room list defines no rooms")
	}
	return rooms, nil
}

// LoadRoomList reads templates from path. A missing file is an error:
// a metaserver without rooms cannot serve anyone.
func LoadRoomList(path string) ([]Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening room list %s: %w", path, err)
	}
	defer f.Close()

	rooms, err := ParseRoomList(f)
	if err != nil {
		return nil, fmt.Errorf("parsing room list %s: %w", path, err)
	}
	return rooms, nil
}

func parseBool(s string) (bool, error) {
	switch s {
	case "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

func parseCaste(s string) (model.Caste, error) {
	v, err := strconv.ParseInt(s, 10, 16)
	if err != nil {
		return 0, err
	}
	if v < 0 || v >= int64(model.CasteCount) {
		return 0, fmt.Errorf("caste %d out of range", v)
	}
	return model.Caste(v), nil
}
