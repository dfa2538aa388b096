package main

import (
	"os"
	"slices"
)

// init runs before any lipgloss renderer queries the terminal.
//
// Termenv background detection writes OSC/DSR sequences to stdout, which
// corrupts output piped from the plain subcommands (tree --json in
// particular). Setting CI=1 turns that probing off.
func init() {
	if os.Getenv("CI") != "" {
		return
	}
	if !shouldSuppressTTYQueries(os.Args[1:], os.Getenv("SETTREE_TEST_MODE") != "") {
		return
	}
	_ = os.Setenv("CI", "1")
}

// plainCommands never start the interface.
var plainCommands = []string{"tree", "recent", "validate", "version", "help", "completion"}

func shouldSuppressTTYQueries(args []string, envTest bool) bool {
	if envTest {
		return true
	}
	for _, arg := range args {
		switch arg {
		case "--help", "-h", "--version":
			return true
		}
	}
	for _, arg := range args {
		if len(arg) > 0 && arg[0] == '-' {
			continue
		}
		// The first positional argument is a subcommand or a definitions file.
		return slices.Contains(plainCommands, arg)
	}
	return false
}
