// Package core provides modification parsing and management
package core

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ModDatabase stores modification definitions and the short tags the
// model alphabet uses for them (e.g. Oxidation -> "ox").
type ModDatabase struct {
	mods map[string]float64 // name or tag -> mass shift
	tags map[string]string  // name -> tag
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		mods: make(map[string]float64),
		tags: make(map[string]string),
	}
}

// LoadFromCSV loads modifications from a CSV file (format: mod,massshift[,tag])
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	// Skip header line
	scanner.Scan()

	lineNum := 1
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Split(line, ",")
		if len(parts) < 2 {
			return fmt.Errorf("line %d: invalid format, expected at least 2 comma-separated fields", lineNum)
		}

		modName := strings.TrimSpace(parts[0])
		massStr := strings.TrimSpace(parts[1])

		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", lineNum, massStr, err)
		}

		db.Add(modName, mass)
		if len(parts) >= 3 {
			if tag := strings.TrimSpace(parts[2]); tag != "" {
				db.AddTag(modName, tag)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading CSV: %w", err)
	}

	return nil
}

// GetMass returns the mass shift for a modification name or tag
func (db *ModDatabase) GetMass(name string) (float64, bool) {
	mass, ok := db.mods[name]
	return mass, ok
}

// Add adds or updates a modification
func (db *ModDatabase) Add(name string, mass float64) {
	db.mods[name] = mass
}

// AddTag registers the sequence tag for a known modification. The tag
// resolves to the same mass shift as the name.
func (db *ModDatabase) AddTag(name, tag string) {
	db.tags[name] = tag
	if mass, ok := db.mods[name]; ok {
		db.mods[tag] = mass
	}
}

// Tag returns the sequence tag for a modification name.
func (db *ModDatabase) Tag(name string) (string, bool) {
	tag, ok := db.tags[name]
	return tag, ok
}

// ModifiedSequence renders a bare sequence and its modifications in the
// tagged form the tokenizer reads, e.g. "PEPM(ox)IDE". Fixed modifications
// are implied and not rendered. Terminal modifications are not representable
// and yield an error.
func (db *ModDatabase) ModifiedSequence(sequence string, mods []Modification) (string, error) {
	tagAt := make(map[int]string, len(mods))
	for _, mod := range mods {
		if mod.Position < 0 || mod.Position >= len(sequence) {
			return "", fmt.Errorf("modification '%s' at position %d is outside the sequence", mod.Name, mod.Position)
		}
		aa := rune(sequence[mod.Position])
		if fixed, ok := FixedModifications[aa]; ok && fixed == mod.Name {
			continue
		}
		tag, ok := db.Tag(mod.Name)
		if !ok {
			return "", fmt.Errorf("modification '%s' has no sequence tag", mod.Name)
		}
		tagAt[mod.Position] = tag
	}

	var b strings.Builder
	for i := 0; i < len(sequence); i++ {
		b.WriteByte(sequence[i])
		if tag, ok := tagAt[i]; ok {
			b.WriteString("(" + tag + ")")
		}
	}
	return b.String(), nil
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common modifications
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()

	// Common modifications from unimod
	db.Add("Acetyl", 42.010565)
	db.Add("Carbamidomethyl", 57.021464)
	db.Add("Deamidated", 0.984016)
	db.Add("Phospho", 79.966331)
	db.Add("Oxidation", 15.994915)
	db.Add("Methyl", 14.01565)
	db.Add("Dimethyl", 28.0313)
	db.Add("TMT6plex", 229.162932)
	db.Add("TMTPro", 304.207146)

	db.AddTag("Oxidation", "ox")
	db.AddTag("Phospho", "ph")
	db.AddTag("Carbamidomethyl", "cam")

	return db
}
