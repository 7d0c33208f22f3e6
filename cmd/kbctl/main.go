// Command kbctl loads knowledge into a kbase vector store and queries it.
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

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbase/internal/config"
	logpkg "github.com/kailas-cloud/kbase/internal/logger"
	"github.com/kailas-cloud/kbase/internal/vectordb/factory"
	"github.com/kailas-cloud/kbase/internal/version"
)

const usage = `kbctl - manage a kbase knowledge store

Usage:
  kbctl load [flags] <path|url>...   load files, directories or pages
  kbctl search [flags] <query>       search the collection
  kbctl drop [flags]                 drop the collection
  kbctl version                      print version

Run "kbctl <command> -h" for command flags.
`

// errUsage marks errors caused by bad arguments.
var errUsage = errors.New("usage")

type command func(ctx context.Context, args []string, stdout io.Writer) error

var commands = map[string]command{
	"load":   runLoad,
	"search": runSearch,
	"drop":   runDrop,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}
	if args[0] == "version" {
		fmt.Fprintln(stdout, version.String())
		return 0
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd(ctx, args[1:], stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, color.RedString("Error: %v", err))
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// commonFlags are shared by every subcommand that opens the store.
type commonFlags struct {
	configPath string
	env        string
	collection string
	verbose    bool
}

func (c *commonFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "config file (default: config/<env>.yaml)")
	fs.StringVar(&c.env, "env", config.GetEnv(), "config environment")
	fs.StringVar(&c.collection, "collection", "", "collection name override")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
}

func (c *commonFlags) loadConfig() (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if c.configPath != "" {
		cfg, err = config.LoadFile(c.configPath)
	} else {
		cfg, err = config.Load(c.env)
	}
	if err != nil {
		return config.Config{}, err
	}
	if c.collection != "" {
		cfg.Backend.Collection = c.collection
	}
	return cfg, nil
}

func (c *commonFlags) logger() (*zap.Logger, error) {
	level := ""
	if c.verbose {
		level = "debug"
	}
	return logpkg.NewLogger("cli", level)
}

// open loads the config and builds the backend it names.
func (c *commonFlags) open(ctx context.Context) (config.Config, *factory.Backend, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return config.Config{}, nil, err
	}
	backend, err := factory.New(ctx, cfg, logger, nil)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, backend, nil
}

func newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: kbctl %s [flags] %s\n\nFlags:\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}
