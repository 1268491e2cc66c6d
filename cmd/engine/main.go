package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sukhmangill977/data-couch/internal/config"
	"github.com/Sukhmangill977/data-couch/internal/secrets"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

const usage = `usage:
  engine [run] [-config f] [-env f] [-every d] [-dry-run] [-debug]
  engine secrets set mail|trello [-config f] [-env f]   (value read from stdin)
  engine history [-n N] [-config f] [-env f]
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := dispatch(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func dispatch(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := "run"
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}
	switch cmd {
	case "run":
		return runCmd(ctx, args, stderr)
	case "secrets":
		return secretsCmd(args, stdin, stdout, stderr)
	case "history":
		return historyCmd(ctx, args, stdout, stderr)
	case "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", cmd, usage)
		return exitUsage
	}
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath string
	envPath    string
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *commonFlags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "config.yml", "YAML config file (optional)")
	fs.StringVar(&cf.envPath, "env", ".env", "dotenv file (optional)")
	return fs, cf
}

// loadConfig layers defaults, the YAML file, the dotenv file, the process
// environment and the keychain, in that order.
func loadConfig(cf *commonFlags) (config.Config, error) {
	if err := config.LoadEnvFile(cf.envPath); err != nil {
		return config.Config{}, fmt.Errorf("load %s: %w", cf.envPath, err)
	}
	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	config.ApplyEnv(&cfg, os.Getenv)
	if err := secrets.Resolve(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseFlags(fs *flag.FlagSet, args []string) (int, bool) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK, false
		}
		return exitUsage, false
	}
	return exitOK, true
}
