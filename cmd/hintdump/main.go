// hintdump prints the generic type hints stored in class-file attributes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/chazu/typehints/catalog"
	"github.com/chazu/typehints/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("typehints.hintdump")

func main() {
	configDir := flag.String("config", "", "Directory containing typehints.toml (default: search upward from the working directory)")
	format := flag.String("format", "", "Output format: text or cbor (overrides config)")
	output := flag.String("o", "", "Write output to file instead of stdout")
	catalogPath := flag.String("catalog", "", "Record decoded hints into this SQLite catalog (overrides config)")
	verbose := flag.Int("v", -1, "Log verbosity (overrides config)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: hintdump [options] paths...\n\n")
		fmt.Fprintf(os.Stderr, "Decodes type-hint attributes from .class files and directories of them.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  hintdump Box.class                     # Annotated listing\n")
		fmt.Fprintf(os.Stderr, "  hintdump -format cbor build/ > out.cbor # Canonical CBOR records\n")
		fmt.Fprintf(os.Stderr, "  hintdump -catalog hints.db build/       # Also record into a catalog\n")
		fmt.Fprintf(os.Stderr, "\nHint offsets are byte offsets into the written code. A load or store of\n")
		fmt.Fprintf(os.Stderr, "local 4..255 (e.g. iload 5) is 2 bytes, so the next instruction is at +2.\n")
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	m, err := loadManifest(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *format != "" {
		m.Output.Format = *format
	}
	if *catalogPath != "" {
		m.Catalog.Path = *catalogPath
	}
	if *verbose >= 0 {
		m.Log.Verbosity = *verbose
	}
	if err := m.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if path := m.LogPath(); path != "" {
		commonlog.Configure(m.Log.Verbosity, &path)
	} else {
		commonlog.Configure(m.Log.Verbosity, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, m, *output, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func run(ctx context.Context, m *manifest.Manifest, output string, paths []string) error {
	var out io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	} else if m.Output.Format == manifest.FormatCBOR && isTerminal(os.Stdout) {
		return fmt.Errorf("refusing to write CBOR to a terminal; redirect stdout or use -o")
	}

	files, err := collectClassFiles(paths)
	if err != nil {
		return err
	}

	d := newDumper(out, m)
	if path := m.CatalogPath(); path != "" {
		cat, err := catalog.Open(ctx, path)
		if err != nil {
			return err
		}
		defer cat.Close()
		r, err := cat.BeginRun(ctx, strings.Join(paths, " "))
		if err != nil {
			return err
		}
		d.cat, d.run = cat, r.ID
		log.Infof("recording into %s as run %s", path, r.ID)
	}

	failed := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.dumpFile(ctx, f); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
