// Command edgenodectl is a demonstration and manual-test CLI for the edge
// messaging library: it can run a server-role node that echoes received
// data back to its event callback's log line, or a client-role node that
// connects to one and sends a single payload.
//
// Usage:
//
//	edgenodectl serve --connect-type tcp --host 127.0.0.1 --port 7700
//	edgenodectl send  --connect-type tcp --dest-host 127.0.0.1 --dest-port 7700 --payload "hi"
//	edgenodectl version
package main

import (
	"fmt"
	"os"

	"github.com/edgelink/edgenode/cmd/edgenodectl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
