// Package prompt provides the interactive collaborators of a selection run:
// choosing an output path and confirming overwrites.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Prompter asks the analyst for run decisions. Calls are synchronous.
type Prompter interface {
	// ChooseOutputPath returns the base output path for format, or ok=false
	// if the analyst chose none.
	ChooseOutputPath(format, defaultDir string) (path string, ok bool, err error)

	// ConfirmOverwrite asks whether the existing paths may be replaced.
	ConfirmOverwrite(paths []string) (bool, error)
}

// Static answers from fixed values, for non-interactive runs.
type Static struct {
	Path      string
	Overwrite bool
}

// ChooseOutputPath returns the configured path. A relative path is
// resolved against defaultDir.
func (s Static) ChooseOutputPath(_, defaultDir string) (string, bool, error) {
	if s.Path == "" {
		return "", false, nil
	}
	if !filepath.IsAbs(s.Path) && defaultDir != "" {
		return filepath.Join(defaultDir, s.Path), true, nil
	}
	return s.Path, true, nil
}

// ConfirmOverwrite returns the configured answer.
func (s Static) ConfirmOverwrite([]string) (bool, error) {
	return s.Overwrite, nil
}

// Terminal asks questions line by line on a reader/writer pair.
//
// Thread-safety: not safe for concurrent use.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminal creates a Terminal prompter.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// ChooseOutputPath asks for a path. An empty answer means no path.
func (t *Terminal) ChooseOutputPath(format, defaultDir string) (string, bool, error) {
	fmt.Fprintf(t.out, "Output path for %s (relative to %s, empty to cancel): ", format, defaultDir)
	answer, err := t.readLine()
	if err != nil {
		return "", false, err
	}
	if answer == "" {
		return "", false, nil
	}
	if !filepath.IsAbs(answer) && defaultDir != "" {
		answer = filepath.Join(defaultDir, answer)
	}
	return answer, true, nil
}

// ConfirmOverwrite lists the paths and accepts y/yes.
func (t *Terminal) ConfirmOverwrite(paths []string) (bool, error) {
	fmt.Fprintln(t.out, "The following outputs already exist:")
	for _, p := range paths {
		fmt.Fprintf(t.out, "  %s\n", p)
	}
	fmt.Fprint(t.out, "Overwrite? [y/N]: ")
	answer, err := t.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}
