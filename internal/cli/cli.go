package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Visit   *VisitCommand
	Replay  *ReplayCommand
	History *HistoryCommand
	Show    *ShowCommand
	Status  *StatusCommand
	Prune   *PruneCommand
	Purge   *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "navstatus"
	parser.LongDescription = "Track when a browser navigation has really finished loading and which status code it settled on."

	cmds := &commands{
		Visit:   &VisitCommand{globals: &globals, version: version},
		Replay:  &ReplayCommand{globals: &globals, version: version},
		History: &HistoryCommand{globals: &globals, version: version},
		Show:    &ShowCommand{globals: &globals, version: version},
		Status:  &StatusCommand{globals: &globals, version: version},
		Prune:   &PruneCommand{globals: &globals, version: version},
		Purge:   &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("visit", "Navigate a browser and report the settled status", "Launch or attach a browser, navigate to --url, wait until the load settles, and print its status code.", cmds.Visit)
	parser.AddCommand("replay", "Replay a recorded event trace", "Feed a recorded YAML event trace through a fresh tracker and print the final status.", cmds.Replay)
	parser.AddCommand("history", "List recorded outcomes", "List recorded navigation outcomes, newest first, with optional filters.", cmds.History)
	parser.AddCommand("show", "Print one recorded outcome", "Print every field of a recorded navigation outcome.", cmds.Show)
	parser.AddCommand("status", "Show history statistics", "Show database statistics and the status-code distribution of recorded outcomes.", cmds.Status)
	parser.AddCommand("prune", "Apply TTL pruning", "Apply TTL pruning to remove old outcomes.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL outcome history", "Delete ALL recorded outcomes. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the navstatus CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("navstatus %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
