// Command codeatlas analyzes a project tree and emits one structural
// artifact as JSON: its database schema, runtime call flow, API routes
// or code structure. The detect verb lists the language and framework
// candidates the analyzers would act on.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"codeatlas"
	"codeatlas/internal/config"
)

var (
	rootCmd = &cobra.Command{
		Use:           "codeatlas",
		Short:         "Structural analysis artifacts for multi-language codebases",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	outPath     string
	timeout     time.Duration
	skipDirs    []string
	maxFileSize int64
	workers     int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&outPath, "out", "o", "", "write JSON to this file instead of stdout")
	pf.DurationVar(&timeout, "timeout", 0, "abort analysis after this duration")
	pf.StringArrayVar(&skipDirs, "skip", nil, "extra directory glob to prune (repeatable)")
	pf.Int64Var(&maxFileSize, "max-file-size", 0, "per-file size ceiling in bytes")
	pf.IntVar(&workers, "workers", 0, "parallel extraction workers (default NumCPU)")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(artifactCmd("schema", "Extract the database schema artifact", func(ctx context.Context, root string, opts codeatlas.Options) (any, error) {
		return codeatlas.ParseSchema(ctx, root, opts)
	}))
	rootCmd.AddCommand(artifactCmd("flow", "Extract the runtime call-flow artifact", func(ctx context.Context, root string, opts codeatlas.Options) (any, error) {
		return codeatlas.ParseFlow(ctx, root, opts)
	}))
	rootCmd.AddCommand(artifactCmd("routes", "Extract the API route artifact", func(ctx context.Context, root string, opts codeatlas.Options) (any, error) {
		return codeatlas.ParseRoutes(ctx, root, opts)
	}))
	rootCmd.AddCommand(artifactCmd("structure", "Extract the code structure artifact", func(ctx context.Context, root string, opts codeatlas.Options) (any, error) {
		return codeatlas.ParseStructure(ctx, root, opts)
	}))
}

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "List the languages and frameworks found under a path",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := targetRoot(args)
		if err != nil {
			return err
		}
		matches, err := codeatlas.Detect(root)
		if err != nil {
			return err
		}
		return emit(matches, outPath)
	},
}

func artifactCmd(name, short string, parse func(context.Context, string, codeatlas.Options) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " [path]",
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := targetRoot(args)
			if err != nil {
				return err
			}
			opts, outDir, err := buildOptions(cmd, root)
			if err != nil {
				return err
			}

			start := time.Now()
			result, err := parse(cmd.Context(), root, opts)
			if err != nil {
				if errors.Is(err, codeatlas.ErrUnsupportedProject) {
					return fmt.Errorf("%s: nothing to analyze under %s", name, root)
				}
				return err
			}

			dest := outPath
			if dest == "" && outDir != "" {
				dest = filepath.Join(outDir, name+".json")
			}
			if err := emit(result, dest); err != nil {
				return err
			}
			slog.Info("analysis complete",
				"artifact", name,
				"root", root,
				"duration", time.Since(start).Round(time.Millisecond))
			return nil
		},
	}
}

func targetRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// buildOptions layers the project config file beneath any flag the
// user set explicitly.
func buildOptions(cmd *cobra.Command, root string) (codeatlas.Options, string, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return codeatlas.Options{}, "", err
	}
	opts := cfg.Options()

	flags := cmd.Flags()
	if flags.Changed("timeout") {
		opts.Timeout = timeout
	}
	if flags.Changed("skip") {
		opts.SkipDirs = skipDirs
	}
	if flags.Changed("max-file-size") {
		opts.MaxFileSizeBytes = maxFileSize
	}
	if flags.Changed("workers") {
		opts.Workers = workers
	}
	opts.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	return opts, cfg.Output.Dir, nil
}

func emit(v any, dest string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if dest == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(dest, data, 0o644)
}
