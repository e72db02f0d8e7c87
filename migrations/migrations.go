// Package migrations embeds the PostgreSQL schema scripts.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

// Direction selects the up or down scripts
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Script is one migration file
type Script struct {
	Name string
	SQL  string
}

// Scripts returns the scripts for a direction in execution order: ascending
// for up, descending for down
func Scripts(dir Direction) ([]Script, error) {
	if dir != Up && dir != Down {
		return nil, fmt.Errorf("invalid migration direction %q, expected up or down", dir)
	}

	names, err := fs.Glob(files, "*."+string(dir)+".sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	if dir == Down {
		sort.Sort(sort.Reverse(sort.StringSlice(names)))
	}

	scripts := make([]Script, 0, len(names))
	for _, name := range names {
		data, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		scripts = append(scripts, Script{Name: name, SQL: strings.TrimSpace(string(data))})
	}
	return scripts, nil
}
