package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/typehints/attr"
	"github.com/chazu/typehints/catalog"
	"github.com/chazu/typehints/classfile"
	"github.com/chazu/typehints/hint"
	"github.com/chazu/typehints/manifest"
)

// dumper prints the type-hint attributes of class files and optionally
// records them in a catalog.
type dumper struct {
	out    io.Writer
	format string
	ignore func(name string) bool

	cat *catalog.Catalog
	run string
}

func newDumper(out io.Writer, m *manifest.Manifest) *dumper {
	return &dumper{out: out, format: m.Output.Format, ignore: m.Ignored}
}

// decl is a declaration together with its decoded hint attributes.
type decl struct {
	loc   catalog.Location
	attrs []attr.Decoder
	code  *classfile.CodeInfo
}

// collectClassFiles expands directories into the .class files below them.
func collectClassFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".class") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func (d *dumper) dumpFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	decls, err := d.decode(cf)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("%s: class %s, %d declarations with hints", path, cf.Name, len(decls))

	if d.cat != nil {
		if err := d.record(ctx, decls); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	switch d.format {
	case manifest.FormatCBOR:
		return d.writeCBOR(decls)
	default:
		return d.writeText(cf, decls)
	}
}

// decode gathers the known, non-ignored attributes of the class and its
// members. Members without hints and without a body are left out.
func (d *dumper) decode(cf *classfile.ClassFile) ([]decl, error) {
	var decls []decl

	class, err := d.decodeAll(cf.Attributes)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", cf.Name, err)
	}
	decls = append(decls, decl{
		loc:   catalog.Location{Class: cf.Name, Scope: catalog.ScopeClass},
		attrs: class,
	})

	for _, f := range cf.Fields {
		attrs, err := d.decodeAll(f.Attributes)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if len(attrs) == 0 {
			continue
		}
		decls = append(decls, decl{
			loc:   catalog.Location{Class: cf.Name, Scope: catalog.ScopeField, Member: f.Name, Desc: f.Desc},
			attrs: attrs,
		})
	}

	for _, m := range cf.Methods {
		attrs, err := d.decodeAll(m.Attributes)
		if err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
		code, err := m.Code(cf.Pool)
		if err != nil {
			return nil, fmt.Errorf("method %s%s: %w", m.Name, m.Desc, err)
		}
		if len(attrs) == 0 && code == nil {
			continue
		}
		decls = append(decls, decl{
			loc:   catalog.Location{Class: cf.Name, Scope: catalog.ScopeMethod, Member: m.Name, Desc: m.Desc},
			attrs: attrs,
			code:  code,
		})
	}
	return decls, nil
}

func (d *dumper) decodeAll(raws []classfile.RawAttribute) ([]attr.Decoder, error) {
	var out []attr.Decoder
	for _, raw := range raws {
		if !attr.Known(raw.AttrName) || d.ignore(raw.AttrName) {
			continue
		}
		a, err := attr.Decode(raw.AttrName, raw.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *dumper) record(ctx context.Context, decls []decl) error {
	for _, dc := range decls {
		for _, a := range dc.attrs {
			if err := d.cat.Record(ctx, d.run, dc.loc, a); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *dumper) writeCBOR(decls []decl) error {
	var recs []*attr.Record
	for _, dc := range decls {
		for _, a := range dc.attrs {
			rec, err := attr.NewRecord(a)
			if err != nil {
				return err
			}
			rec.Owner = dc.loc.String()
			recs = append(recs, rec)
		}
	}
	data, err := attr.MarshalRecords(recs)
	if err != nil {
		return err
	}
	_, err = d.out.Write(data)
	return err
}

func (d *dumper) writeText(cf *classfile.ClassFile, decls []decl) error {
	w := &errWriter{w: d.out}
	w.printf("class %s", cf.Name)
	if cf.Super != "" {
		w.printf(" extends %s", cf.Super)
	}
	w.printf("\n")

	for _, dc := range decls {
		indent := "  "
		switch dc.loc.Scope {
		case catalog.ScopeField:
			w.printf("  field %s %s\n", dc.loc.Member, dc.loc.Desc)
			indent = "    "
		case catalog.ScopeMethod:
			w.printf("  method %s%s\n", dc.loc.Member, dc.loc.Desc)
			indent = "    "
		}
		for _, a := range dc.attrs {
			w.printf("%s%v\n", indent, a)
		}
		if dc.code != nil {
			insns, err := classfile.DecodeCode(dc.code.Code, cf.Pool)
			if err != nil {
				return fmt.Errorf("%s: %w", dc.loc, err)
			}
			notes := annotations(dc.attrs)
			for _, in := range insns {
				line := fmt.Sprintf("%s%5d: %s", indent, in.Offset, in.Text)
				if n := notes[uint16(in.Offset)]; len(n) > 0 {
					line = fmt.Sprintf("%-48s ; %s", line, strings.Join(n, "; "))
				}
				w.printf("%s\n", line)
			}
		}
	}
	return w.err
}

// annotations collects per-offset notes from the offset-keyed attributes.
func annotations(attrs []attr.Decoder) map[uint16][]string {
	notes := map[uint16][]string{}
	add := func(off uint16, format string, args ...any) {
		notes[off] = append(notes[off], fmt.Sprintf(format, args...))
	}
	for _, a := range attrs {
		switch v := a.(type) {
		case *attr.InvokeReturnType:
			for _, h := range v.Hints {
				add(h.Offset, "returns %s", h.Type)
			}
		case *attr.InstructionTypeArguments:
			for _, h := range v.Hints {
				add(h.Offset, "type args %s", argList(h.Types))
			}
		case *attr.ExtraBoxUnbox:
			for _, off := range v.Offsets {
				add(off, "erasure box/unbox")
			}
		case *attr.BCNewTypeArgs:
			for _, e := range v.Entries {
				add(e.Offset, "type arg locals %v", e.Locals)
			}
		}
	}
	for _, n := range notes {
		sort.Strings(n)
	}
	return notes
}

func argList(types []hint.ArgType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
