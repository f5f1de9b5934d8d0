// Package queryfile saves and loads the four query fragments an analyst
// works with.
//
// A query file has exactly four lines, in this order:
//
//	Fields {<columns>}
//	Where {<filter>}
//	Group By {<group-by>}
//	Order By {<order-by>}
//
// Newlines inside a fragment are written as "$$" and read back as "\r\n".
// Lines are terminated with "\r\n"; both "\r\n" and "\n" are accepted on load.
package queryfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// Extension is the default file extension for saved queries.
const Extension = ".qsf"

// NewlineToken encodes a newline inside a fragment.
const NewlineToken = "$$"

// Newline is the line break restored for NewlineToken.
const Newline = "\r\n"

// Labels in file order.
const (
	LabelFields  = "Fields"
	LabelWhere   = "Where"
	LabelGroupBy = "Group By"
	LabelOrderBy = "Order By"
)

var labels = [...]string{LabelFields, LabelWhere, LabelGroupBy, LabelOrderBy}

// Query holds the four saved fragments.
type Query struct {
	Fields  string `json:"fields"`
	Where   string `json:"where"`
	GroupBy string `json:"group_by"`
	OrderBy string `json:"order_by"`
}

func (q Query) fragments() [4]string {
	return [4]string{q.Fields, q.Where, q.GroupBy, q.OrderBy}
}

// Encode writes q in query file format.
func Encode(w io.Writer, q Query) error {
	for i, frag := range q.fragments() {
		if _, err := fmt.Fprintf(w, "%s {%s}%s", labels[i], encodeFragment(frag), Newline); err != nil {
			return fmt.Errorf("write %s: %w", labels[i], err)
		}
	}
	return nil
}

// Decode reads a query file. Labels must appear in the fixed order.
func Decode(r io.Reader) (Query, error) {
	var frags [4]string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if n >= len(labels) {
			return Query{}, fmt.Errorf("line %d: unexpected content after %q", n+1, LabelOrderBy)
		}
		frag, err := parseLine(line, labels[n])
		if err != nil {
			return Query{}, fmt.Errorf("line %d: %w", n+1, err)
		}
		frags[n] = decodeFragment(frag)
		n++
	}
	if err := scanner.Err(); err != nil {
		return Query{}, fmt.Errorf("read query file: %w", err)
	}
	if n != len(labels) {
		return Query{}, fmt.Errorf("expected %d lines, found %d", len(labels), n)
	}

	return Query{Fields: frags[0], Where: frags[1], GroupBy: frags[2], OrderBy: frags[3]}, nil
}

// Save writes q to path, replacing any existing file.
func Save(path string, q Query) error {
	var buf bytes.Buffer
	if err := Encode(&buf, q); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save query file: %w", err)
	}
	return nil
}

// Load reads the query file at path.
func Load(path string) (Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return Query{}, fmt.Errorf("open query file: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func parseLine(line, label string) (string, error) {
	prefix := label + " {"
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("expected %q label", label)
	}
	body := line[len(prefix):]
	end := strings.LastIndex(body, "}")
	if end < 0 {
		return "", fmt.Errorf("%s: missing closing brace", label)
	}
	if strings.TrimSpace(body[end+1:]) != "" {
		return "", fmt.Errorf("%s: unexpected text after closing brace", label)
	}
	return body[:end], nil
}

func encodeFragment(s string) string {
	s = strings.ReplaceAll(s, "\r\n", NewlineToken)
	s = strings.ReplaceAll(s, "\n", NewlineToken)
	return strings.ReplaceAll(s, "\r", NewlineToken)
}

func decodeFragment(s string) string {
	return strings.ReplaceAll(s, NewlineToken, Newline)
}
