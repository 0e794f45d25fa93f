package compiler

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ImportDecl is one native function declaration.
type ImportDecl struct {
	Name    string
	Minimum int
}

// ParseImports reads an import declaration file. Each non-blank line ends
// with a bracketed function name and its minimum argument count; anything
// before those two fields is ignored. Lines starting with # are comments.
func ParseImports(r io.Reader) ([]ImportDecl, error) {
	var decls []ImportDecl
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("import line %d: want [name] and minimum argument count, got %q", lineNo, line)
		}
		nameField, minField := fields[len(fields)-2], fields[len(fields)-1]

		name, ok := unbracket(nameField)
		if !ok {
			return nil, fmt.Errorf("import line %d: function name %q is not bracketed", lineNo, nameField)
		}
		minimum, err := strconv.Atoi(minField)
		if err != nil || minimum < 0 {
			return nil, fmt.Errorf("import line %d: invalid minimum argument count %q", lineNo, minField)
		}
		decls = append(decls, ImportDecl{Name: name, Minimum: minimum})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading imports: %w", err)
	}
	return decls, nil
}

func unbracket(s string) (string, bool) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") || utf8.RuneCountInString(s) < 3 {
		return "", false
	}
	return s[1 : len(s)-1], true
}

// LoadImports registers every declaration in r as a native function, in
// file order.
func (c *Compiler) LoadImports(r io.Reader) error {
	decls, err := ParseImports(r)
	if err != nil {
		return err
	}
	for _, d := range decls {
		c.DeclareNative(d.Name, d.Minimum)
	}
	log.Debugf("imported %d native functions", len(decls))
	return nil
}

// LoadImportFile is LoadImports on the named file.
func (c *Compiler) LoadImportFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open import file: %w", err)
	}
	defer f.Close()
	if err := c.LoadImports(f); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
