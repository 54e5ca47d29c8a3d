// Command askmodel-mcp serves the ask-model tools to a host agent
// over the Model Context Protocol on stdin/stdout.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/backend"
	"github.com/effective-security/askmodel/callbacks"
	"github.com/effective-security/askmodel/config"
	"github.com/effective-security/askmodel/dispatcher"
	"github.com/effective-security/askmodel/encoding"
	"github.com/effective-security/askmodel/mcp"
	"github.com/effective-security/askmodel/pkg/llmfactory"
	"github.com/effective-security/askmodel/pkg/llmutils"
	"github.com/effective-security/askmodel/tools"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/askmodel", "main")

// ErrMissingCredential is returned when no API key is configured for the provider.
var ErrMissingCredential = errors.New("missing API key")

type cli struct {
	Config       string           `short:"c" help:"Path to the configuration file, YAML or JSON"`
	OpenAIAPIKey string           `name:"openai-api-key" env:"OPENAI_API_KEY" help:"OpenAI API key"`
	LogLevel     string           `name:"log-level" help:"Overrides the log level of the configuration: TRACE, DEBUG, INFO, NOTICE, WARNING, ERROR"`
	ListTools    bool             `name:"list-tools" help:"Print the tool catalog and exit"`
	Format       string           `default:"yaml" enum:"json,yaml,toml" help:"Format of the tool catalog: json, yaml or toml"`
	Trace        bool             `help:"Print the tool call events to stderr"`
	Version      kong.VersionFlag `help:"Print version and exit"`
}

func newParser(c *cli, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("askmodel-mcp"),
		kong.Description("MCP server to ask LLM models text and image questions"),
		kong.Vars{"version": config.DefaultServerVersion},
		kong.UsageOnError(),
	}, opts...)
	return kong.New(c, opts...)
}

func main() {
	var c cli
	parser, err := newParser(&c)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		os.Exit(1)
	}
	_, err = parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, &c, os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		logger.KV(xlog.ERROR, "status", "server_failed", "err", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if err = configureLogging(&cfg.Logging, c.LogLevel, stderr); err != nil {
		return err
	}

	catalog := tools.DefaultCatalog()
	if c.ListTools {
		return printCatalog(stdout, catalog, c.Format)
	}

	f := llmfactory.New(&cfg.LLM)
	provider := f.DefaultProvider()
	if provider == nil {
		return errors.New("no providers configured")
	}
	if isOpenAI(provider) {
		provider.Token = values.StringsCoalesce(c.OpenAIAPIKey, provider.Token)
	}
	if provider.Token == "" {
		return errors.WithMessagef(ErrMissingCredential,
			"provider %q: set OPENAI_API_KEY environment variable or --openai-api-key", provider.Name)
	}

	model, err := f.DefaultModel()
	if err != nil {
		return errors.WithMessage(err, "failed to create model")
	}

	client, err := backend.New(model,
		backend.WithMaxImageSize(cfg.Image.MaxBytes),
		backend.WithRemoteImages(cfg.Image.RemoteImagesAllowed()),
		backend.WithModelResolver(func(m string) string {
			return provider.FindModel(m)
		}),
	)
	if err != nil {
		return err
	}

	timeout, err := cfg.Dispatch.Timeout()
	if err != nil {
		return err
	}

	stats := callbacks.NewStats()
	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger), stats)
	if c.Trace {
		cb.Add(callbacks.NewPrinter(stderr, callbacks.ModeVerbose))
	}

	d, err := dispatcher.New(catalog, client,
		dispatcher.WithStrictValidation(cfg.Dispatch.StrictValidation),
		dispatcher.WithCallTimeout(timeout),
		dispatcher.WithCallback(cb),
	)
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(cfg.Server.Name, cfg.Server.Version, catalog, d)
	if err != nil {
		return err
	}

	logger.KV(xlog.INFO,
		"status", "starting",
		"server", cfg.Server.Name,
		"version", cfg.Server.Version,
		"provider", provider.Name,
		"model", model.GetName(),
		"strict_validation", cfg.Dispatch.StrictValidation,
	)

	err = srv.ServeStdio(ctx, stdin, stdout)

	logger.KV(xlog.INFO,
		"status", "stopped",
		"stats", llmutils.ToJSON(stats.GetStats()),
	)
	return err
}

type catalogDoc struct {
	Tools []*tools.Descriptor `json:"tools" yaml:"tools" toml:"tools"`
}

func printCatalog(w io.Writer, catalog *tools.Catalog, format string) error {
	enc, err := encoding.PredefinedEncoder(values.StringsCoalesce(format, encoding.ModeDefault))
	if err != nil {
		return err
	}
	out, err := enc.Marshal(catalogDoc{Tools: catalog.List()})
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func isOpenAI(p *llmfactory.ProviderConfig) bool {
	switch strings.ToUpper(p.OpenAI.APIType) {
	case "", "OPENAI", "OPEN_AI":
		return true
	}
	return false
}

func configureLogging(cfg *config.LoggingConfig, levelOverride string, w io.Writer) error {
	if strings.EqualFold(cfg.Format, "json") {
		xlog.SetFormatter(xlog.NewJSONFormatter(w))
	} else {
		xlog.SetFormatter(xlog.NewStringFormatter(w))
	}

	level, err := xlog.ParseLevel(strings.ToUpper(values.StringsCoalesce(levelOverride, cfg.Level)))
	if err != nil {
		return errors.WithMessage(err, "invalid log level")
	}
	xlog.SetGlobalLogLevel(level)
	return nil
}
