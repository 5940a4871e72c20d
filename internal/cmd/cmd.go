// Package cmd implements the multipacks command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/mangoplex/multipacks/internal/config"
	"github.com/mangoplex/multipacks/internal/logging"
	"github.com/mangoplex/multipacks/internal/repository"
)

// httpTimeout bounds each request of HTTP repositories, including downloads
// that outlive a cancelled caller.
const httpTimeout = 5 * time.Minute

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configFiles []string
	repoTokens  []string
	logLevel    logging.Level
	metricsFile string

	env        *config.Environment
	root       *config.Root
	log        *logging.Logger
	configured []repository.Repository
	parsers    repository.Parsers
}

// Execute runs the command line with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := New(stdin, stdout, stderr)
	c.SetArgs(args)
	if err := c.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

// New returns the root command.
func New(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, logLevel: logging.Info}

	root := &cobra.Command{
		Use:           "multipacks",
		Short:         "Build resource packs from packs and their dependencies",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.writeMetrics()
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringArrayVar(&a.configFiles, "config", nil, "configuration file or directory, may be repeated (default $MULTIPACKS_HOME/config.yaml)")
	flags.Var(enumflag.New(&a.logLevel, "level", logging.LevelNames, enumflag.EnumCaseInsensitive), "log-level", "log level: debug, info, warn or error")
	flags.StringArrayVarP(&a.repoTokens, "repo", "R", nil, `repository to use instead of the configured ones: "#<index>", "file:<path>", "http(s)://<url>" or "git+<url>[#<ref>]"`)
	flags.StringVar(&a.metricsFile, "metrics-file", "", "write metrics in the Prometheus text format to this file")

	root.AddCommand(
		newListCommand(a),
		newPackCommand(a),
	)

	return root
}

func (a *app) load(cmd *cobra.Command) error {
	ctx := cmd.Context()

	env, err := config.ParseEnv()
	if err != nil {
		return err
	}
	a.env = env

	if !cmd.Flags().Changed("log-level") {
		level, ok := logging.ParseLevel(strings.ToLower(env.LogLevel))
		if !ok {
			return fmt.Errorf("invalid MULTIPACKS_LOG_LEVEL %q", env.LogLevel)
		}
		a.logLevel = level
	}
	a.log = logging.New(logging.Config{Level: a.logLevel, Output: a.stderr})

	files := a.configFiles
	if len(files) == 0 {
		if _, err := os.Stat(env.ConfigFile()); err == nil {
			files = []string{env.ConfigFile()}
		}
	}

	a.root = &config.Root{}
	if len(files) > 0 {
		bs, err := config.Merge(files, false)
		if err != nil {
			return err
		}
		a.root, err = config.Parse(bs)
		if err != nil {
			return err
		}
		a.log.Debugf("loaded configuration from %s", strings.Join(files, ", "))
	}

	headers := make(map[string]map[string]string, len(a.root.HTTP))
	for _, host := range a.root.SortedHosts() {
		h, err := host.ResolveHeaders(ctx)
		if err != nil {
			return err
		}
		headers[strings.ToLower(host.Name)] = h
	}

	cacheDir := env.Cache(a.root)
	remote := repository.Parsers{
		repository.FileParser(""),
		repository.HTTPParser(&http.Client{Timeout: httpTimeout}, func(host string) map[string]string {
			return headers[strings.ToLower(host)]
		}),
		repository.GitParser(cacheDir, repository.GitAuth(ctx, a.root)),
	}

	a.configured, err = remote.ParseAll(a.root.Repositories)
	if err != nil {
		return err
	}
	a.parsers = append(repository.Parsers{repository.IndexParser(a.configured)}, remote...)

	return nil
}

// repositories returns the repositories selected with -R, or the configured
// ones.
func (a *app) repositories() ([]repository.Repository, error) {
	if len(a.repoTokens) == 0 {
		return a.configured, nil
	}
	return a.parsers.ParseAll(a.repoTokens)
}

func (a *app) writeMetrics() error {
	if a.metricsFile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(a.metricsFile, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
