// Command watchdog checks whether agent sessions are actually working.
package main

import (
	"os"

	"github.com/agent-autonomy-kit/watchdog/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
