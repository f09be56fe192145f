// Package fixture loads a test set from a JSON file. Real ctest discovers
// tests by reading CTestTestfile.cmake; that collaborator is out of scope
// here, so this package is the stand-in that makes cmd/ctestsched runnable
// end to end. Modeled on the teacher's JSON startup-config loader
// (internal/kernel/startup.go's LoadStartupConfig).
package fixture

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/kitware/ctest-go/internal/testmodel"
)

// entry is one test's on-disk representation. Depends references other
// entries by Name, since a fixture author shouldn't have to pre-assign
// dense ids by hand; Load resolves names to testmodel.ID itself.
type entry struct {
	ID         int      `json:"id"`
	Name       string   `json:"name"`
	Command    []string `json:"command"`
	Directory  string   `json:"directory,omitempty"`
	Depends    []string `json:"depends,omitempty"`
	Processors int      `json:"processors,omitempty"`
	RunSerial  bool     `json:"run_serial,omitempty"`
	Cost       float64  `json:"cost,omitempty"`
}

// document is the top-level fixture shape.
type document struct {
	Tests []entry `json:"tests"`
}

// Load reads a fixture file and returns the property set ready for
// engine.Engine.SetTests.
func Load(path string) (map[testmodel.ID]testmodel.Properties, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fixture: reading %q: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("fixture: parsing %q: %w", path, err)
	}

	byName := make(map[string]testmodel.ID, len(doc.Tests))
	for _, e := range doc.Tests {
		if e.Name == "" {
			return nil, fmt.Errorf("fixture: test id %d has no name", e.ID)
		}
		byName[e.Name] = testmodel.ID(e.ID)
	}

	props := make(map[testmodel.ID]testmodel.Properties, len(doc.Tests))
	for _, e := range doc.Tests {
		if len(e.Command) == 0 {
			return nil, fmt.Errorf("fixture: test %q has no command", e.Name)
		}
		deps := make(map[testmodel.ID]struct{}, len(e.Depends))
		for _, depName := range e.Depends {
			depID, ok := byName[depName]
			if !ok {
				return nil, fmt.Errorf("fixture: test %q depends on unknown test %q", e.Name, depName)
			}
			deps[depID] = struct{}{}
		}
		props[testmodel.ID(e.ID)] = testmodel.Properties{
			Name:        e.Name,
			Directory:   e.Directory,
			CommandArgv: e.Command,
			Depends:     deps,
			Processors:  e.Processors,
			RunSerial:   e.RunSerial,
			Cost:        e.Cost,
		}
	}
	return props, nil
}
