// Package docs provides document providers backed by a local directory and
// by read-only web exports.
package docs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rahul/chainbench/internal/provider"
)

// lookupExts are tried, in order, for references given without extension.
var lookupExts = []string{".yaml", ".yml", ".txt", ".md"}

// Directory serves documents from files under Root. References are
// slash-separated paths relative to Root and may not escape it.
type Directory struct {
	Root string
}

var _ provider.DocumentProvider = (*Directory)(nil)

func NewDirectory(root string) *Directory {
	absRoot, _ := filepath.Abs(root)
	return &Directory{Root: absRoot}
}

func (d *Directory) GetText(_ context.Context, ref string) (string, error) {
	path, err := d.resolve(ref)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && filepath.Ext(path) == "" {
		notFound := err
		for _, ext := range lookupExts {
			if data, err = os.ReadFile(path + ext); !errors.Is(err, fs.ErrNotExist) {
				break
			}
		}
		if errors.Is(err, fs.ErrNotExist) {
			err = notFound
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to read document %s: %w", provider.ErrTransport, ref, err)
	}
	return string(data), nil
}

func (d *Directory) ReplaceText(_ context.Context, ref, text string) error {
	path, err := d.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory for %s: %w", provider.ErrTransport, ref, err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("%w: failed to write document %s: %w", provider.ErrTransport, ref, err)
	}
	return nil
}

func (d *Directory) AppendText(_ context.Context, ref, text string) error {
	path, err := d.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory for %s: %w", provider.ErrTransport, ref, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to open document %s: %w", provider.ErrTransport, ref, err)
	}
	defer f.Close()

	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("%w: failed to append to document %s: %w", provider.ErrTransport, ref, err)
	}
	return nil
}

func (d *Directory) resolve(ref string) (string, error) {
	id, err := provider.ParseRef(ref)
	if err != nil {
		return "", err
	}

	targetPath := filepath.Join(d.Root, filepath.FromSlash(id))

	// targetPath must stay within d.Root
	rel, err := filepath.Rel(d.Root, targetPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: unsafe document path %s", provider.ErrTransport, ref)
	}
	return targetPath, nil
}
