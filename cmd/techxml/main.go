// techxml decodes, canonicalises and inspects technology documents from
// the command line.
//
//	techxml decode   [--format json|msgpack|cbor] LOCATION
//	techxml canon    LOCATION
//	techxml menu     LOCATION
//	techxml eval     --rules FILE [--rule-set NAME] LOCATION
//	techxml validate LOCATION...
//
// LOCATION is a file path or an http, https or file URL.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/pflag"

	"github.com/imr/Electric8/internal/export"
	"github.com/imr/Electric8/internal/rules"
	"github.com/imr/Electric8/internal/tech"
	"github.com/imr/Electric8/internal/techxml"
)

// Version is set during build.
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		var exit *exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// exitError ends the process with code after the command has already
// reported the failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// common holds the flags every command accepts.
type common struct {
	output     string
	noValidate bool
	timeout    time.Duration
	verbose    bool
}

func (c *common) addFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVarP(&c.output, "output", "o", "", "write to this file instead of stdout")
	flagSet.BoolVar(&c.noValidate, "no-validate", false, "skip grammar validation")
	flagSet.DurationVar(&c.timeout, "timeout", 30*time.Second, "timeout for fetching URLs")
	flagSet.BoolVarP(&c.verbose, "verbose", "v", false, "log decoding progress")
}

func (c *common) loader(stderr io.Writer) *techxml.Loader {
	level := slog.LevelError + 1
	if c.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	opts := []techxml.Option{techxml.WithLogger(logger)}
	if c.noValidate {
		opts = append(opts, techxml.WithoutValidation())
	}
	loader := techxml.NewLoader(nil, logger, opts...)
	loader.Client.Timeout = c.timeout
	return loader
}

// writeOutput passes the destination selected by --output to write.
func (c *common) writeOutput(stdout io.Writer, write func(io.Writer) error) error {
	if c.output == "" {
		return write(stdout)
	}
	f, err := os.Create(c.output)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const (
	decodeUsage   = "[--format json|msgpack|cbor] LOCATION"
	canonUsage    = "LOCATION"
	menuUsage     = "LOCATION"
	evalUsage     = "--rules FILE [--rule-set NAME] LOCATION"
	validateUsage = "LOCATION..."
)

type command struct {
	summary string
	usage   string
	run     func(ctx context.Context, args []string, stdout, stderr io.Writer) error
}

var commands = map[string]command{
	"decode": {
		summary: "decode a document and print its summary",
		usage:   decodeUsage,
		run:     runDecode,
	},
	"canon": {
		summary: "re-encode a document in canonical pretty form",
		usage:   canonUsage,
		run:     runCanon,
	},
	"menu": {
		summary: "print the component menu as a flat fragment",
		usage:   menuUsage,
		run:     runMenu,
	},
	"eval": {
		summary: "evaluate node sizes and layer rules against a rule table",
		usage:   evalUsage,
		run:     runEval,
	},
	"validate": {
		summary: "check that documents decode, reporting the first error of each",
		usage:   validateUsage,
		run:     runValidate,
	},
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}
	if args[0] == "--version" || args[0] == "version" {
		fmt.Fprintf(stdout, "techxml %s\n", Version)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(ctx, args[1:], stdout, stderr)
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Usage: techxml COMMAND [flags]\n\nCommands:\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nRun 'techxml COMMAND --help' for the flags of a command.\n")
}

// parseFlags parses args into flagSet. It returns errHelp when the user
// asked for help, after printing it.
func parseFlags(flagSet *pflag.FlagSet, args []string, usage string, stdout io.Writer) error {
	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stdout, "Usage: techxml %s %s\n\nFlags:\n%s", flagSet.Name(), usage, flagSet.FlagUsages())
			return errHelp
		}
		return err
	}
	return nil
}

var errHelp = errors.New("help requested")

// single parses flags for a command taking exactly one location and
// loads it.
func single(ctx context.Context, flagSet *pflag.FlagSet, usage string, c *common, args []string, stdout, stderr io.Writer) (*tech.Technology, error) {
	if err := parseFlags(flagSet, args, usage, stdout); err != nil {
		return nil, err
	}
	if flagSet.NArg() != 1 {
		return nil, fmt.Errorf("usage: techxml %s %s", flagSet.Name(), usage)
	}
	return c.loader(stderr).Load(ctx, flagSet.Arg(0))
}

func ignoreHelp(err error) error {
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}

func runDecode(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	var format string
	flagSet := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	c.addFlags(flagSet)
	flagSet.StringVarP(&format, "format", "f", "json", "summary format: json, msgpack or cbor")

	t, err := single(ctx, flagSet, decodeUsage, &c, args, stdout, stderr)
	if err != nil {
		return ignoreHelp(err)
	}
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	data, err := export.Marshal(f, export.Summarize(t))
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if f == export.FormatJSON {
		data = append(data, '\n')
	}
	return c.writeOutput(stdout, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func runCanon(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	flagSet := pflag.NewFlagSet("canon", pflag.ContinueOnError)
	c.addFlags(flagSet)

	t, err := single(ctx, flagSet, canonUsage, &c, args, stdout, stderr)
	if err != nil {
		return ignoreHelp(err)
	}
	return c.writeOutput(stdout, func(w io.Writer) error {
		return techxml.NewEncoder(techxml.Pretty).EncodeTechnology(w, t)
	})
}

func runMenu(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	flagSet := pflag.NewFlagSet("menu", pflag.ContinueOnError)
	c.addFlags(flagSet)

	t, err := single(ctx, flagSet, menuUsage, &c, args, stdout, stderr)
	if err != nil {
		return ignoreHelp(err)
	}
	if t.MenuPalette == nil {
		return fmt.Errorf("technology %q has no menu palette", t.Name)
	}
	menu, err := techxml.MenuPaletteString(t.MenuPalette)
	if err != nil {
		return err
	}
	return c.writeOutput(stdout, func(w io.Writer) error {
		_, err := io.WriteString(w, menu+"\n")
		return err
	})
}

func runEval(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	var rulesPath, ruleSet string
	flagSet := pflag.NewFlagSet("eval", pflag.ContinueOnError)
	c.addFlags(flagSet)
	flagSet.StringVarP(&rulesPath, "rules", "r", "", "YAML rule table")
	flagSet.StringVar(&ruleSet, "rule-set", "", "restrict rule values to this rule set")

	t, err := single(ctx, flagSet, evalUsage, &c, args, stdout, stderr)
	if err != nil {
		return ignoreHelp(err)
	}
	if rulesPath == "" {
		return errors.New("--rules is required")
	}
	table, err := rules.ParseRules(rulesPath)
	if err != nil {
		return err
	}
	ev, err := rules.Evaluate(t, table, ruleSet)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(ev, "", "  ")
	if err != nil {
		return err
	}
	return c.writeOutput(stdout, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var c common
	flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	c.addFlags(flagSet)
	if err := parseFlags(flagSet, args, validateUsage, stdout); err != nil {
		return ignoreHelp(err)
	}
	if flagSet.NArg() == 0 {
		return fmt.Errorf("usage: techxml validate %s", validateUsage)
	}

	loader := c.loader(stderr)
	failed := 0
	for _, location := range flagSet.Args() {
		t, err := loader.Load(ctx, location)
		if err != nil {
			failed++
			fmt.Fprintf(stdout, "FAIL %s\n", describe(location, err))
			continue
		}
		fmt.Fprintf(stdout, "ok   %s (%s: %d layers, %d arcs, %d nodes)\n",
			location, t.Name, len(t.Layers()), len(t.Arcs), len(t.Nodes))
	}
	if failed > 0 {
		return &exitError{code: 2}
	}
	return nil
}

// describe formats a load failure on one line, with its position when the
// failure carries one.
func describe(location string, err error) string {
	var sve *techxml.SchemaValidationError
	if errors.As(err, &sve) {
		return fmt.Sprintf("%s:%d:%d: %s", location, sve.Line, sve.Column, sve.Msg)
	}
	var de *techxml.DecodeError
	if errors.As(err, &de) {
		return fmt.Sprintf("%s:%d:%d: %v", location, de.Line, de.Column, de.Err)
	}
	return fmt.Sprintf("%s: %s", location, strings.Join(strings.Fields(err.Error()), " "))
}
