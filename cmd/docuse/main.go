// Command docuse is a thin, hard-coded entrypoint that wires the pipeline
// (C9) together end to end so the module is runnable. It takes no flags and
// reads no config file — a real CLI front-end (flags, subcommands, config
// file loading) is out of scope; this exists only for manual smoke-testing
// the pipeline against a directory tree.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/standardbeagle/docuse/internal/config"
	"github.com/standardbeagle/docuse/internal/debug"
	"github.com/standardbeagle/docuse/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		debug.Warn("MAIN", "%s", err.Error())
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) < 2 {
		return fmt.Errorf("usage: docuse <project-root>")
	}
	root, err := filepath.Abs(os.Args[1])
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}

	files, err := discoverPythonFiles(root)
	if err != nil {
		return fmt.Errorf("discover python files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .py files found under %s", root)
	}

	cfg := config.Default()
	cfg.ProjectRoot = root
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	p, err := pipeline.New(cfg)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	summary, err := p.Run(ctx, files, files)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	for _, fr := range summary.Files {
		if fr.Err != nil {
			fmt.Fprintf(os.Stdout, "%s: %s (%v)\n", fr.Path, fr.Outcome, fr.Err)
			continue
		}
		fmt.Fprintf(os.Stdout, "%s: %s\n", fr.Path, fr.Outcome)
	}
	if summary.Err != nil {
		fmt.Fprintln(os.Stderr, summary.Err)
	}

	if summary.ExitNonZero() {
		os.Exit(1)
	}
	return nil
}

// discoverPythonFiles walks root for .py files. It is deliberately the only
// file-discovery logic in this command — gitignore-style exclusion rules are
// an explicit non-goal, so every .py file under root, outside hidden
// directories (names starting with "."), is treated as both an edit-set and
// reference-set member.
func discoverPythonFiles(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(path, ".py") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
