// Utility for enrolling portal credentials in the system keyring.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	"github.com/happyleavesaoc/motorparts/pkg/cli"
)

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "usage: %s -username EMAIL\n", filepath.Base(os.Args[0]))
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Prompts for the portal password and vehicle PIN and saves them in the system")
	fmt.Fprintf(w, "keyring under the given username. The username defaults to $%s.\n", cli.EnvMoparUsername)
}

func prompt(label string) (string, error) {
	fmt.Printf("%s: ", label)
	value, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func main() {
	returnCode := 1
	defer func() {
		os.Exit(returnCode)
	}()

	_ = godotenv.Load()

	config, err := cli.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %s\n", err)
		return
	}
	flag.Usage = usage
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()

	if config.Username == "" {
		fmt.Fprintf(os.Stderr, "Must provide a username with -username or $%s\n", cli.EnvMoparUsername)
		return
	}

	password, err := prompt("Portal password (leave empty to keep current)")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading password: %s\n", err)
		return
	}
	pin, err := prompt("Vehicle PIN (leave empty to keep current)")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading PIN: %s\n", err)
		return
	}

	if err := config.SaveCredentials(password, pin); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving credentials: %s\n", err)
		return
	}

	returnCode = 0
}
