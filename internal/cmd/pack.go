package cmd

import (
	"bufio"
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/thediveo/enumflag/v2"

	"github.com/mangoplex/multipacks/internal/artifact"
	"github.com/mangoplex/multipacks/internal/bundler"
	"github.com/mangoplex/multipacks/internal/config"
	"github.com/mangoplex/multipacks/internal/packs"
	"github.com/mangoplex/multipacks/internal/progress"
	"github.com/mangoplex/multipacks/internal/resolver"
	"github.com/mangoplex/multipacks/internal/storage"
)

func newPackCommand(a *app) *cobra.Command {
	pack := &cobra.Command{
		Use:   "pack",
		Short: "Create, resolve and build packs",
	}

	pack.AddCommand(
		newPackInitCommand(a),
		newPackResolveCommand(a),
		newPackBuildCommand(a),
	)

	return pack
}

func newPackInitCommand(a *app) *cobra.Command {
	var (
		id      string
		version string
		skip    bool
	)

	cmd := &cobra.Command{
		Use:   "init DIR",
		Short: "Create a new pack in DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := args[0]
			manifest := filepath.Join(dir, packs.ManifestFile)
			if _, err := os.Stat(manifest); err == nil {
				return fmt.Errorf("%s already contains a pack", dir)
			}

			abs, err := filepath.Abs(dir)
			if err != nil {
				return err
			}

			values := map[string]string{
				"id":          cmp.Or(id, packs.DefaultNamespace+"/"+packName(filepath.Base(abs))),
				"version":     cmp.Or(version, "1.0.0"),
				"name":        filepath.Base(abs),
				"description": "",
			}

			if !skip {
				r := bufio.NewReader(a.stdin)
				for _, key := range []string{"id", "version", "name", "description"} {
					if values[key], err = a.prompt(r, key, values[key]); err != nil {
						return err
					}
				}
			}

			m := packs.Manifest{Name: values["name"], Description: values["description"]}
			if m.ID, err = packs.ParseIdentifier(values["id"]); err != nil {
				return err
			}
			if m.Version, err = packs.ParseVersion(values["version"]); err != nil {
				return err
			}

			bs, err := m.Marshal()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(filepath.Join(dir, packs.AssetsDir), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(manifest, bs, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "created %s@%s in %s\n", m.ID, m.Version, dir)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "pack identifier (default multipacks/<directory name>)")
	cmd.Flags().StringVar(&version, "version", "", "pack version (default 1.0.0)")
	cmd.Flags().BoolVar(&skip, "skip", false, "skip the prompts and use the defaults")

	return cmd
}

func (a *app) prompt(r *bufio.Reader, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(a.stderr, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(a.stderr, "%s: ", label)
	}

	line, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return cmp.Or(strings.TrimSpace(line), def), nil
}

// packName turns a directory name into a valid identifier name.
func packName(dir string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r - 'A' + 'a'
		default:
			return '_'
		}
	}, dir)
	return cmp.Or(name, "pack")
}

func newPackResolveCommand(a *app) *cobra.Command {
	var ignoreErrors bool

	cmd := &cobra.Command{
		Use:   "resolve DIR",
		Short: "Print the build order of the pack in DIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := packs.LoadDir(args[0])
			if err != nil {
				return err
			}

			repos, err := a.repositories()
			if err != nil {
				return err
			}

			res, err := resolver.New(repos...).
				WithIgnoreErrors(ignoreErrors).
				WithLogger(a.log).
				Resolve(cmd.Context(), root)
			if err != nil {
				return err
			}

			for _, w := range res.Warnings {
				a.log.Warnf("%v", w)
			}

			table := tablewriter.NewWriter(a.stdout)
			table.Header("#", "Pack", "Version", "Location")
			for i, p := range res.Order {
				if err := table.Append([]string{strconv.Itoa(i + 1), p.ID.String(), p.Version.String(), p.Location}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}

	cmd.Flags().BoolVar(&ignoreErrors, "ignore-errors", false, "report dependency errors as warnings")

	return cmd
}

func newPackBuildCommand(a *app) *cobra.Command {
	var (
		output       string
		target       string
		description  string
		ignore       []bundler.Ignore
		exclude      []string
		ignoreErrors bool
		publish      bool
	)

	cmd := &cobra.Command{
		Use:   "build DIR",
		Short: "Build the pack in DIR with its dependencies",
		Long: `Build the pack in DIR with its dependencies.

The artifact is written to the output path: a zip archive when the path ends
with ".zip", a directory otherwise. With --publish the zip archive is uploaded
to the configured storage.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" && !publish {
				return errors.New("an output path (-O) or --publish is required")
			}

			var version packs.Version
			if v := cmp.Or(target, a.root.TargetVersion); v != "" {
				var err error
				if version, err = packs.ParseVersion(v); err != nil {
					return err
				}
			}

			for _, name := range a.root.Ignore {
				i, err := bundler.ParseIgnore(name)
				if err != nil {
					return err
				}
				if !slices.Contains(ignore, i) {
					ignore = append(ignore, i)
				}
			}

			root, err := packs.LoadDir(args[0])
			if err != nil {
				return err
			}

			repos, err := a.repositories()
			if err != nil {
				return err
			}

			bar := progress.New(a.stderr, "bundling "+root.ID.String())
			result, err := bundler.New(bundler.DefaultFactories()...).
				WithRepositories(repos...).
				WithTarget(version).
				WithIgnore(ignore...).
				WithIgnoreErrors(ignoreErrors).
				WithExcluded(slices.Concat(a.root.ExcludedFiles, exclude)).
				WithLogger(a.log).
				WithProgress(bar).
				Bundle(cmd.Context(), root)
			bar.Finish()
			if err != nil {
				return err
			}

			for _, w := range result.Warnings {
				a.log.Warnf("%v", w)
			}

			opts := artifact.Options{Description: description, Logger: a.log}

			if output != "" {
				if err := artifact.Write(result, output, opts); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "built %s for %s: %d assets, digest %s\n", output, result.Target, len(result.Assets), result.Digest())
			}

			if publish {
				return a.publish(cmd.Context(), result, opts)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "O", "", "output path, a directory or a .zip file")
	flags.StringVar(&target, "target", "", "game version to build for (default from configuration, or "+bundler.DefaultTarget.String()+")")
	flags.StringVar(&description, "description", "", "description written to "+artifact.MetadataFile)
	flags.VarP(enumflag.NewSlice(&ignore, "feature", bundler.IgnoreNames, enumflag.EnumCaseInsensitive), "ignore", "I", "feature to build without: glyphs, models, sprites or patches, may be repeated")
	flags.StringArrayVar(&exclude, "exclude", nil, "glob of pack files to leave out, may be repeated")
	flags.BoolVar(&ignoreErrors, "ignore-errors", false, "report dependency and asset errors as warnings")
	flags.BoolVar(&publish, "publish", false, "upload the artifact to the configured storage")

	return cmd
}

func (a *app) publish(ctx context.Context, result *bundler.Result, opts artifact.Options) error {
	if a.root.Storage == nil {
		return errors.New("--publish requires storage in the configuration")
	}

	fsys, err := artifact.FS(result, opts)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := artifact.WriteZip(&buf, fsys); err != nil {
		return err
	}

	store, err := storage.New(ctx, *a.root.Storage)
	if err != nil {
		return err
	}

	revision := config.ResolveRevision(a.root.Revision, map[string]string{
		"digest":  result.Digest(),
		"version": result.Root.Version.String(),
	})

	if err := store.Upload(ctx, &buf, revision); err != nil {
		return err
	}

	fmt.Fprintf(a.stdout, "published %s revision %s\n", result.Root, revision)
	return nil
}
