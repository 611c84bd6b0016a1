// Package capability reports which analysis engines this build provides. The
// probe runs once at startup and its result is threaded through component
// construction instead of consulting process-wide flags ad hoc.
package capability

import "fmt"

// Engine describes one analysis engine's availability.
type Engine struct {
	Name      string
	Available bool
	Detail    string
}

// Set is the result of the startup probe.
type Set struct {
	Engines []Engine
}

// Probe determines engine availability for this build. Disk, capture,
// metadata and acquisition engines are compiled in; memory-image analysis has
// no engine in this build and is reported absent by name rather than failing
// at use time.
func Probe() Set {
	return Set{Engines: []Engine{
		{Name: "disk-image analysis", Available: true, Detail: "go-diskfs backend"},
		{Name: "packet-capture analysis", Available: true, Detail: "gopacket/pcapgo"},
		{Name: "metadata extraction", Available: true, Detail: "plist-aware"},
		{Name: "disk acquisition", Available: true},
		{Name: "file hashing", Available: true, Detail: "MD5, SHA-256"},
		{Name: "memory-image analysis", Available: false, Detail: "no memory-forensics engine in this build"},
	}}
}

// Has reports whether the named engine is available.
func (s Set) Has(name string) bool {
	for _, e := range s.Engines {
		if e.Name == name {
			return e.Available
		}
	}
	return false
}

// Describe renders one line per engine for display.
func (s Set) Describe() []string {
	lines := make([]string, 0, len(s.Engines))
	for _, e := range s.Engines {
		status := "available"
		if !e.Available {
			status = "unavailable"
		}
		line := fmt.Sprintf("%s: %s", e.Name, status)
		if e.Detail != "" {
			line += " (" + e.Detail + ")"
		}
		lines = append(lines, line)
	}
	return lines
}
