package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/joho/godotenv"

	"github.com/happyleavesaoc/motorparts/internal/log"
	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/cli"
	"github.com/happyleavesaoc/motorparts/pkg/protocol"
	"github.com/happyleavesaoc/motorparts/pkg/vehicle"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format, a...)
	fmt.Fprintf(os.Stderr, "\n")
}

func Usage() {
	fmt.Printf("Usage: %s [OPTION...] COMMAND\n", os.Args[0])
	fmt.Printf("\nRuns COMMAND against the Mopar owner portal. With no COMMAND, starts an interactive shell.\n")
	fmt.Println("")
	fmt.Printf("Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Println("")
	fmt.Printf("Available COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		info := commands[command]
		fmt.Printf("  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), info.help)
	}
}

func runCommand(acct *account.Account, car *vehicle.Vehicle, args []string, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := execute(ctx, acct, car, args); err != nil {
		if protocol.MayHaveSucceeded(err) {
			writeErr("Couldn't verify success: %s", err)
		} else if errors.Is(err, protocol.ErrSessionExpired) {
			writeErr("Session expired. Re-run the command to log in again.")
		} else {
			writeErr("Failed to execute command: %s", err)
		}
		return 1
	}
	return 0
}

func runInteractiveShell(acct *account.Account, car *vehicle.Vehicle, timeout time.Duration) int {
	scanner := bufio.NewScanner(os.Stdin)
	for fmt.Printf("> "); scanner.Scan(); fmt.Printf("> ") {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			return 0
		}
		runCommand(acct, car, args, timeout)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	// Credentials may live in a .env file alongside the binary.
	_ = godotenv.Load()

	var (
		debug          bool
		vehicleIndex   int
		noWait         bool
		commandTimeout time.Duration
	)
	config, err := cli.NewConfig()
	if err != nil {
		writeErr("Failed to load configuration: %s", err)
		return
	}
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.IntVar(&vehicleIndex, "vehicle", 0, "Vehicle `index` in the account profile")
	flag.BoolVar(&noWait, "no-wait", false, "Dispatch commands without waiting for the vehicle to acknowledge them")
	flag.DurationVar(&commandTimeout, "command-timeout", 90*time.Second, "Set timeout for commands, including acknowledgement polling.")
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()

	if debug {
		log.SetLevel(log.LevelDebug)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	acct, err := config.Connect(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, protocol.ErrAuthenticationFailed) {
			writeErr("Login failed. Check your username, password, and PIN.")
		} else {
			writeErr("Failed to log in: %s", err)
		}
		return
	}

	car := vehicle.New(acct, vehicleIndex)
	waitForAck = !noWait

	if flag.NArg() == 0 {
		status = runInteractiveShell(acct, car, commandTimeout)
		return
	}
	status = runCommand(acct, car, flag.Args(), commandTimeout)
}
