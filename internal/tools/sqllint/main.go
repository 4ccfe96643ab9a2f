// Command sqllint checks that every inline SQL constant carries a unique
// "--sql <uuid>" marker on its first line, so a statement seen in database
// logs can be traced back to the constant that issued it.
package main

import (
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	statementPattern = regexp.MustCompile(`(?i)\b(select|insert|update|delete|with)\b`)
	markerPattern    = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
)

type violation struct {
	file    string
	name    string
	line    int
	message string
}

// linter accumulates violations across files; markers must be unique over
// the whole run, not only within one file.
type linter struct {
	seen       map[string]violation
	violations []violation
}

func newLinter() *linter {
	return &linter{seen: make(map[string]violation)}
}

func main() {
	flag.Parse()
	os.Exit(run(flag.Args(), os.Stderr))
}

func run(targets []string, stderr io.Writer) int {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(stderr, "sqllint: %v\n", err)
			return 1
		}
	}
	if len(l.violations) == 0 {
		return 0
	}

	sort.Slice(l.violations, func(i, j int) bool {
		a, b := l.violations[i], l.violations[j]
		if a.file != b.file {
			return a.file < b.file
		}
		return a.line < b.line
	})
	fmt.Fprintln(stderr, "sqllint: invalid SQL audit markers")
	for _, v := range l.violations {
		fmt.Fprintf(stderr, "  %s:%d %s (%s)\n", v.file, v.line, v.message, v.name)
	}
	return 1
}

// walk lints target, which may be a single .go file or a directory tree.
// Hidden directories and vendor are skipped.
func (l *linter) walk(target string) error {
	return filepath.WalkDir(target, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != target && (strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" {
			return nil
		}
		vs, err := lintFile(path, l.seen)
		if err != nil {
			return err
		}
		l.violations = append(l.violations, vs...)
		return nil
	})
}

// lintFile reports constants without a marker and markers already recorded in
// seen by another constant.
func lintFile(path string, seen map[string]violation) ([]violation, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return nil, err
	}

	var out []violation
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.CONST {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				lit, ok := value.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING {
					continue
				}
				raw, err := unquote(lit.Value)
				if err != nil || !statementPattern.MatchString(raw) {
					continue
				}
				v := violation{file: path, line: fset.Position(lit.Pos()).Line, name: constName(vs.Names, i)}
				marker := firstLine(raw)
				if !markerPattern.MatchString(marker) {
					v.message = "missing or invalid --sql <uuid> marker"
					out = append(out, v)
					continue
				}
				if prev, dup := seen[marker]; dup {
					v.message = fmt.Sprintf("duplicate marker, first used by %s at %s:%d", prev.name, prev.file, prev.line)
					out = append(out, v)
					continue
				}
				seen[marker] = v
			}
		}
	}
	return out, nil
}

func firstLine(s string) string {
	s = strings.TrimLeft(s, "\n\r \t")
	if line, _, ok := strings.Cut(s, "\n"); ok {
		return strings.TrimSpace(line)
	}
	return strings.TrimSpace(s)
}

func unquote(v string) (string, error) {
	if strings.HasPrefix(v, "`") {
		return strings.Trim(v, "`"), nil
	}
	return strconv.Unquote(v)
}

func constName(names []*ast.Ident, i int) string {
	if i < len(names) && names[i] != nil {
		return names[i].Name
	}
	return "_"
}
