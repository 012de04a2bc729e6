package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/typehints/attr"
	"github.com/chazu/typehints/catalog"
	"github.com/chazu/typehints/classfile"
	"github.com/chazu/typehints/hint"
	"github.com/chazu/typehints/manifest"
	"github.com/chazu/typehints/methodgen"
)

// writeUseClass writes a small class with hints on the class, a field and
// a method, and returns its path.
func writeUseClass(t *testing.T, dir string) string {
	t.Helper()
	c := classfile.NewClass(classfile.AccPublic|classfile.AccSuper, "demo/Use", "java/lang/Object")
	box := c.Pool.AddClass("demo/Box")
	str := c.Pool.AddClass("java/lang/String")
	ctor := c.Pool.AddMethodref("demo/Box", "<init>", "()V")
	get := c.Pool.AddMethodref("demo/Box", "get", "()Ljava/lang/Object;")

	c.AddAttribute(attr.ClassTypeParameterCount{Count: 1})
	f := c.AddField(classfile.AccPrivate, "box", "Ldemo/Box;")
	f.AddAttribute(attr.FieldType{Type: hint.SlotType{Kind: hint.SlotClass, Index: box}})

	m := methodgen.NewMethod(c, classfile.AccPublic|classfile.AccStatic, "run", "()Ljava/lang/Object;")
	m.TypeInsn(classfile.OpNew, box, []hint.ArgType{hint.ClassArg(str)})
	m.Emit(classfile.OpDup)
	m.Invoke(classfile.OpInvokespecial, ctor, hint.NoHint)
	m.Invoke(classfile.OpInvokevirtual, get, hint.Some(hint.SlotType{Kind: hint.SlotClass, Index: str}))
	m.Emit(classfile.OpAreturn)
	if err := m.Finish(2, 0); err != nil {
		t.Fatal(err)
	}
	m.Target().AddAttribute(attr.ExtraBoxUnbox{Offsets: []uint16{7}})

	data, err := c.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "Use.class")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDumpText(t *testing.T) {
	path := writeUseClass(t, t.TempDir())
	var out bytes.Buffer
	d := newDumper(&out, manifest.Default())
	if err := d.dumpFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	for _, want := range []string{
		"class demo/Use extends java/lang/Object",
		"ClassTypeParameterCount",
		"  field box Ldemo/Box;",
		"  method run()Ljava/lang/Object;",
		"InvokeReturnType{",
		"type args <K#",
		"returns K#",
		"erasure box/unbox",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "returns") && !strings.Contains(line, "invokevirtual") {
			t.Errorf("return hint on wrong instruction: %q", line)
		}
		if strings.Contains(line, "type args") && !strings.Contains(line, "new") {
			t.Errorf("type args on wrong instruction: %q", line)
		}
	}
}

func TestDumpIgnore(t *testing.T) {
	path := writeUseClass(t, t.TempDir())
	m := manifest.Default()
	m.Attributes.Ignore = []string{attr.NameInvokeReturnType, attr.NameExtraBoxUnbox}
	var out bytes.Buffer
	if err := newDumper(&out, m).dumpFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	text := out.String()
	if strings.Contains(text, "InvokeReturnType") || strings.Contains(text, "returns") || strings.Contains(text, "erasure") {
		t.Errorf("ignored attribute printed:\n%s", text)
	}
	if !strings.Contains(text, "InstructionTypeArguments") {
		t.Errorf("output missing InstructionTypeArguments:\n%s", text)
	}
}

func TestDumpCBOR(t *testing.T) {
	path := writeUseClass(t, t.TempDir())
	m := manifest.Default()
	m.Output.Format = manifest.FormatCBOR
	var out bytes.Buffer
	if err := newDumper(&out, m).dumpFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	recs, err := attr.UnmarshalRecords(out.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range recs {
		if _, err := r.Attribute(); err != nil {
			t.Errorf("%s: %v", r.Name, err)
		}
		names = append(names, r.Owner+" "+r.Name)
	}
	want := []string{
		"demo/Use ClassTypeParameterCount",
		"demo/Use.boxLdemo/Box; FieldType",
		"demo/Use.run()Ljava/lang/Object; InvokeReturnType",
		"demo/Use.run()Ljava/lang/Object; InstructionTypeArguments",
		"demo/Use.run()Ljava/lang/Object; ExtraBoxUnbox",
	}
	if strings.Join(names, "\n") != strings.Join(want, "\n") {
		t.Errorf("records:\n%s\nwant:\n%s", strings.Join(names, "\n"), strings.Join(want, "\n"))
	}
}

func TestDumpIntoCatalog(t *testing.T) {
	ctx := context.Background()
	path := writeUseClass(t, t.TempDir())
	cat, err := catalog.Open(ctx, ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	r, err := cat.BeginRun(ctx, path)
	if err != nil {
		t.Fatal(err)
	}

	d := newDumper(&bytes.Buffer{}, manifest.Default())
	d.cat, d.run = cat, r.ID
	if err := d.dumpFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	stored, err := cat.Attributes(ctx, r.ID, "demo/Use")
	if err != nil || len(stored) != 5 {
		t.Fatalf("stored %d attributes (%v), want 5", len(stored), err)
	}
	// new at 0, dup at 3, invokespecial at 4, invokevirtual at 7
	hints, err := cat.HintsAt(ctx, r.ID, "demo/Use", "run", "()Ljava/lang/Object;", 7)
	if err != nil || len(hints) != 1 || hints[0].Attribute != attr.NameInvokeReturnType {
		t.Errorf("HintsAt(7) = %v, %v", hints, err)
	}
}

func TestDumpBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Bad.class")
	if err := os.WriteFile(path, []byte{0xCA, 0xFE}, 0644); err != nil {
		t.Fatal(err)
	}
	if err := newDumper(&bytes.Buffer{}, manifest.Default()).dumpFile(context.Background(), path); err == nil {
		t.Error("expected error")
	}
}

func TestRunWritesOutputFile(t *testing.T) {
	dir := t.TempDir()
	writeUseClass(t, mkdir(t, dir, "classes"))
	out := filepath.Join(dir, "hints.cbor")
	m := manifest.Default()
	m.Output.Format = manifest.FormatCBOR
	m.Catalog.Path = filepath.Join(dir, "hints.db")

	if err := run(context.Background(), m, out, []string{filepath.Join(dir, "classes")}); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := attr.UnmarshalRecords(data)
	if err != nil || len(recs) != 5 {
		t.Errorf("read %d records, %v", len(recs), err)
	}
	if _, err := os.Stat(m.Catalog.Path); err != nil {
		t.Errorf("catalog not created: %v", err)
	}
}

func mkdir(t *testing.T, parent, name string) string {
	t.Helper()
	dir := filepath.Join(parent, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	return dir
}
