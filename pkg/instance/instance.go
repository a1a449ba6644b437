// Package instance identifies which worker replica emitted a log line.
package instance

import "os"

// GetID returns the replica identifier from WORKER_ID, falling back to a
// stable local default.
func GetID() string {
	if id := os.Getenv("WORKER_ID"); id != "" {
		return id
	}
	return "worker-0"
}
