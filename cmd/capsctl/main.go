// Command capsctl administers a caps-intake store without the HTTP server:
// identity management, listing exports and document rendering.
package main

import (
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}
