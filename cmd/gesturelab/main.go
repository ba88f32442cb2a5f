// Command gesturelab relays hand landmarks from a camera or from client
// frames to connected visualization clients.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
