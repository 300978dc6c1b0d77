/*
Package cli facilitates building command-line applications that talk to the Mopar owner portal.
It defines a [Config] type that registers common command-line flags (using the Golang flag
package) and environment variable equivalents.

The package uses [keyring]'s platform-agnostic interface for storing the portal password and PIN
in an OS-dependent credential store, so that neither has to appear on the command line or in
shell history. Missing secrets are prompted for interactively as a last resort.

# Example

	config, err := cli.NewConfig()
	if err != nil {
		panic(err)
	}
	config.RegisterCommandLineFlags()
	flag.Parse()
	config.ReadFromEnvironment()

	acct, err := config.Connect(ctx) // Logs in, reusing saved cookies when possible.
*/
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/99designs/keyring"

	"github.com/happyleavesaoc/motorparts/internal/log"
	"github.com/happyleavesaoc/motorparts/pkg/account"
	"github.com/happyleavesaoc/motorparts/pkg/cache"
)

// Environment variable names used by [Config.ReadFromEnvironment] to set common parameters.
const (
	EnvMoparUsername     = "MOPAR_USERNAME"
	EnvMoparPassword     = "MOPAR_PASSWORD"
	EnvMoparPIN          = "MOPAR_PIN"
	EnvMoparCookieFile   = "MOPAR_COOKIE_FILE"
	EnvMoparKeyringType  = "MOPAR_KEYRING_TYPE"
	EnvMoparKeyringPass  = "MOPAR_KEYRING_PASSWORD"
	EnvMoparKeyringPath  = "MOPAR_KEYRING_PATH"
	EnvMoparKeyringDebug = "MOPAR_KEYRING_DEBUG"
)

var ErrNoUsername = errors.New("portal username not provided")

// Config fields determine how a client authenticates to the owner portal.
type Config struct {
	Username       string
	CookieFilename string // Where session cookies are persisted between runs.
	Backend        keyring.Config
	BackendType    backendType
	Debug          bool // Enable keyring debug messages

	password        *string // portal password, once resolved
	pin             *string // command PIN, once resolved
	keyringPassword *string // unlocks file-backed keyrings
}

func NewConfig() (*Config, error) {
	c := Config{
		CookieFilename: cache.DefaultFilename,
		Backend: keyring.Config{
			ServiceName:              keyringServiceName,
			KeychainTrustApplication: true,
			KeyCtlScope:              "user",
		},
	}
	c.BackendType = backendType{&c}
	c.Backend.KeychainPasswordFunc = c.getKeyringPassword
	c.Backend.FilePasswordFunc = c.getKeyringPassword
	return &c, nil
}

func (c *Config) RegisterCommandLineFlags() {
	flag.StringVar(&c.Username, "username", "", "Portal account `email`. Defaults to $MOPAR_USERNAME.")
	flag.StringVar(&c.CookieFilename, "cookie-file", c.CookieFilename, "`File` holding saved session cookies. Defaults to $MOPAR_COOKIE_FILE.")

	var names []string
	for _, name := range keyring.AvailableBackends() {
		names = append(names, string(name))
	}
	sort.Strings(names)
	flag.Var(&c.BackendType, "keyring-type", "Keyring `type` ("+strings.Join(names, "|")+"). Defaults to $MOPAR_KEYRING_TYPE.")
	flag.StringVar(&c.Backend.FileDir, "keyring-file-dir", keyringDirectory, "keyring `directory` for file-backed keyring types")
	flag.BoolVar(&c.Debug, "keyring-debug", false, "Enable keyring debug logging")
}

// ReadFromEnvironment populates c using environment variables. Values that are already populated
// are not overwritten.
//
// Calling ReadFromEnvironment after flag.Parse() will prevent the environment from overriding
// explicit command-line parameters.
func (c *Config) ReadFromEnvironment() {
	if c.Username == "" {
		c.Username = os.Getenv(EnvMoparUsername)
		log.Debug("Set username to '%s'", c.Username)
	}
	if c.CookieFilename == "" || c.CookieFilename == cache.DefaultFilename {
		if filename := os.Getenv(EnvMoparCookieFile); filename != "" {
			c.CookieFilename = filename
			log.Debug("Set cookie file to '%s'", c.CookieFilename)
		}
	}
	if c.password == nil {
		if password, ok := os.LookupEnv(EnvMoparPassword); ok {
			c.password = &password
		}
	}
	if c.pin == nil {
		if pin, ok := os.LookupEnv(EnvMoparPIN); ok {
			c.pin = &pin
		}
	}
	if c.BackendType.String() == string(keyring.InvalidBackend) {
		if err := c.BackendType.Set(os.Getenv(EnvMoparKeyringType)); err == nil {
			log.Debug("Set keyring type to '%s'", c.BackendType)
		}
	}
	if c.keyringPassword == nil {
		if password, ok := os.LookupEnv(EnvMoparKeyringPass); ok {
			c.keyringPassword = &password
		}
	}
	if c.Backend.FileDir == "" || c.Backend.FileDir == keyringDirectory {
		if dir := os.Getenv(EnvMoparKeyringPath); dir != "" {
			c.Backend.FileDir = dir
			log.Debug("Set keyring file path to '%s'", c.Backend.FileDir)
		}
	}
	if !c.Debug {
		_, c.Debug = os.LookupEnv(EnvMoparKeyringDebug)
	}
}

// Credentials resolves the portal credentials. The password and PIN come from the environment,
// then the system keyring, then an interactive prompt, in that order.
func (c *Config) Credentials() (account.Credentials, error) {
	if c.Username == "" {
		return account.Credentials{}, ErrNoUsername
	}
	password, err := c.secret(&c.password, keyringPasswordService, "Portal password")
	if err != nil {
		return account.Credentials{}, err
	}
	pin, err := c.secret(&c.pin, keyringPINService, "Vehicle PIN")
	if err != nil {
		return account.Credentials{}, err
	}
	return account.Credentials{Username: c.Username, Password: password, PIN: pin}, nil
}

// Connect logs into the portal with the configured credentials, persisting session cookies in
// c.CookieFilename.
func (c *Config) Connect(ctx context.Context) (*account.Account, error) {
	creds, err := c.Credentials()
	if err != nil {
		return nil, err
	}
	return account.Login(ctx, creds, cache.NewFileStore(c.CookieFilename))
}

// SaveCredentials stores the password and PIN in the system keyring under the configured
// username. Empty values are left unchanged.
func (c *Config) SaveCredentials(password, pin string) error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	if password != "" {
		if err := kr.Set(keyring.Item{
			Key:  keyringPasswordService + "." + c.Username,
			Data: []byte(password),
		}); err != nil {
			return fmt.Errorf("failed to enroll password in keyring: %s", err)
		}
	}
	if pin != "" {
		if err := kr.Set(keyring.Item{
			Key:  keyringPINService + "." + c.Username,
			Data: []byte(pin),
		}); err != nil {
			return fmt.Errorf("failed to enroll PIN in keyring: %s", err)
		}
	}
	return nil
}

// DeleteCredentials removes the password and PIN from the system keyring.
func (c *Config) DeleteCredentials() error {
	kr, err := c.openKeyring()
	if err != nil {
		return err
	}
	if err := kr.Remove(keyringPasswordService + "." + c.Username); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	if err := kr.Remove(keyringPINService + "." + c.Username); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
