package model

import (
	"fmt"
	"strings"
)

// GameFlags is a bitmask of the game products a client or room supports.
type GameFlags uint16

const (
	GameMyth1 GameFlags = 1 << iota
	GameMyth2
	GameMyth3
	GameMarathon
	GameJchat
)

// ParseGameNames parses a comma-separated list of game names from the
// room-list file into a flag mask. "MYTH" is a legacy alias for MYTH2.
func ParseGameNames(csv string) (GameFlags, error) {
	var flags GameFlags
	for _, name := range strings.Split(csv, ",") {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "MYTH", "MYTH2":
			flags |= GameMyth2
		case "MYTH1":
			flags |= GameMyth1
		case "MYTH3":
			flags |= GameMyth3
		case "MARATHON":
			flags |= GameMarathon
		case "JCHAT":
			flags |= GameJchat
		case "":
			// tolerate trailing commas
		default:
			return 0, fmt.Errorf("unknown game name %q", name)
		}
	}
	if flags == 0 {
		return 0, fmt.Errorf("no game names in %q", csv)
	}
	return flags, nil
}

// Contains reports whether every flag in sub is also set in g.
func (g GameFlags) Contains(sub GameFlags) bool {
	return g&sub == sub
}

func (g GameFlags) String() string {
	var names []string
	for _, e := range [...]struct {
		flag GameFlags
		name string
	}{
		{GameMyth1, "MYTH1"},
		{GameMyth2, "MYTH2"},
		{GameMyth3, "MYTH3"},
		{GameMarathon, "MARATHON"},
		{GameJchat, "JCHAT"},
	} {
		if g&e.flag != 0 {
			names = append(names, e.name)
		}
	}
	if len(names) == 0 {
		return "NONE"
	}
	return strings.Join(names, ",")
}
