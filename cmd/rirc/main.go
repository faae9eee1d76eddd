// Command rirc is a terminal IRC client.
package main

import (
	"os"

	"github.com/tessro/rirc/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
