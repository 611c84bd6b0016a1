// Porsha is an offline digital-forensics workstation tool: disk-image
// navigation, file hashing, metadata extraction, packet-capture analysis and
// disk acquisition, all run as background tasks over opaque forensic
// collaborators.
package main

import (
	"os"
)

func main() {
	if err := rootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
