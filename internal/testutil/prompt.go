package testutil

import (
	"path/filepath"
	"sync"
)

// Prompter is a scripted prompt.Prompter.
type Prompter struct {
	mu sync.Mutex

	// Path is returned by ChooseOutputPath; relative paths are joined to
	// the default directory.
	Path string
	// Cancel makes ChooseOutputPath report no choice.
	Cancel bool
	// Overwrite is the answer to every overwrite question.
	Overwrite bool
	// Err is returned by both methods when set.
	Err error

	chosen    []string
	confirmed [][]string
}

// ChooseOutputPath implements prompt.Prompter.
func (p *Prompter) ChooseOutputPath(format, defaultDir string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chosen = append(p.chosen, format)
	if p.Err != nil {
		return "", false, p.Err
	}
	if p.Cancel || p.Path == "" {
		return "", false, nil
	}
	if filepath.IsAbs(p.Path) || defaultDir == "" {
		return p.Path, true, nil
	}
	return filepath.Join(defaultDir, p.Path), true, nil
}

// ConfirmOverwrite implements prompt.Prompter.
func (p *Prompter) ConfirmOverwrite(paths []string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, append([]string(nil), paths...))
	if p.Err != nil {
		return false, p.Err
	}
	return p.Overwrite, nil
}

// Chosen returns the formats ChooseOutputPath was asked for.
func (p *Prompter) Chosen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.chosen...)
}

// Confirmations returns the path lists ConfirmOverwrite was asked about.
func (p *Prompter) Confirmations() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]string(nil), p.confirmed...)
}
