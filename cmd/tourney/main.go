// Command tourney plays a flashcard tournament from the terminal, either
// hosted by one participant (host / join) or through a shared document
// store (create / enter / lobby).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
)

const usage = `usage: tourney <command> [flags]

commands:
  host    run a tournament on this machine and play as its creator
  join    join a hosted tournament by room code
  create  create a tournament in the shared store and play as its creator
  enter   enter a tournament in the shared store by id
  lobby   list tournaments in the shared store that are still waiting`

type command func(ctx context.Context, args []string, stdout io.Writer) error

var commands = map[string]command{
	"host":   runHost,
	"join":   runJoin,
	"create": runCreate,
	"enter":  runEnter,
	"lobby":  runLobby,
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return errUsage
	}
	return cmd(ctx, args[1:], stdout)
}
