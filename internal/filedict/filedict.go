// Package filedict tracks the files a coupling step exchanges. Each entry
// has a source, a destination, and a current location that moves as the
// file is transformed. Digest commits staged entries to their destinations.
package filedict

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// Well-known dictionary names.
const (
	Couple  = "couple"
	Outdata = "outdata"
)

// File is one tracked file.
type File struct {
	Src     string
	Dest    string
	current string
	staged  bool
}

// NewFile returns a file staged at src for commit to dest. An empty dest
// means the file is never moved by Digest.
func NewFile(src, dest string) *File {
	src = cleanPath(src)
	dest = cleanPath(dest)
	if dest == "" {
		dest = src
	}
	return &File{Src: src, Dest: dest, current: src, staged: src != dest}
}

// NewInput returns a file that is read from src and only committed to dest
// once a transformation has moved it (see MoveTo).
func NewInput(src, dest string) *File {
	f := NewFile(src, dest)
	f.staged = false
	return f
}

// Current returns where the file lives right now.
func (f *File) Current() string {
	return f.current
}

// MoveTo records that the file now lives at path and stages it for commit.
func (f *File) MoveTo(path string) {
	f.current = cleanPath(path)
	f.staged = f.current != f.Dest
}

// Staged reports whether Digest will commit the file.
func (f *File) Staged() bool {
	return f.staged
}

// RenameFunc moves a file; os.Rename by default.
type RenameFunc func(oldpath, newpath string) error

// Dict maps logical roles to files.
type Dict struct {
	name    string
	entries map[string]*File
	rename  RenameFunc
}

// NewDict returns an empty dictionary.
func NewDict(name string) *Dict {
	return newDict(name, os.Rename)
}

func newDict(name string, rename RenameFunc) *Dict {
	return &Dict{name: name, entries: map[string]*File{}, rename: rename}
}

// Name returns the dictionary name.
func (d *Dict) Name() string {
	return d.name
}

// Set registers f under role, replacing any previous entry.
func (d *Dict) Set(role string, f *File) {
	d.entries[strings.TrimSpace(role)] = f
}

// Get returns the file registered under role.
func (d *Dict) Get(role string) (*File, bool) {
	f, ok := d.entries[strings.TrimSpace(role)]
	return f, ok
}

// Lookup is Get with an error naming the dictionary and role.
func (d *Dict) Lookup(role string) (*File, error) {
	f, ok := d.Get(role)
	if !ok || f == nil {
		return nil, fmt.Errorf("filedict: %s[%q] is not registered", d.name, role)
	}
	return f, nil
}

// Delete removes role from the dictionary.
func (d *Dict) Delete(role string) {
	delete(d.entries, strings.TrimSpace(role))
}

// Roles returns the sorted registered roles.
func (d *Dict) Roles() []string {
	roles := make([]string, 0, len(d.entries))
	for role := range d.entries {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

// Digest commits every staged entry to its destination, in role order.
// It returns source files a cross-device copy left behind. On error the
// entries committed so far keep their new locations.
func (d *Dict) Digest() ([]string, error) {
	var leftovers []string
	for _, role := range d.Roles() {
		leftover, err := d.commitEntry(role, d.entries[role])
		if err != nil {
			return leftovers, err
		}
		if leftover != "" {
			leftovers = append(leftovers, leftover)
		}
	}
	return leftovers, nil
}

// Commit is Digest for a single role. Other staged entries are left alone.
// The returned path is non-empty when a cross-device copy left the source
// behind.
func (d *Dict) Commit(role string) (string, error) {
	f, err := d.Lookup(role)
	if err != nil {
		return "", err
	}
	return d.commitEntry(strings.TrimSpace(role), f)
}

func (d *Dict) commitEntry(role string, f *File) (string, error) {
	if f == nil || !f.Staged() {
		return "", nil
	}
	copied, err := commit(d.rename, f.current, f.Dest)
	if err != nil {
		return "", fmt.Errorf("filedict: digest %s[%q]: %w", d.name, role, err)
	}
	var leftover string
	if copied {
		leftover = f.current
	}
	f.current = f.Dest
	f.staged = false
	return leftover, nil
}

// Registry groups dictionaries by name.
type Registry struct {
	dicts  map[string]*Dict
	rename RenameFunc
}

// Option customizes a Registry.
type Option func(*Registry)

// WithRename replaces os.Rename for every dictionary of the registry.
func WithRename(fn RenameFunc) Option {
	return func(r *Registry) {
		if fn != nil {
			r.rename = fn
		}
	}
}

// NewRegistry returns a registry holding the couple and outdata dictionaries.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{dicts: map[string]*Dict{}, rename: os.Rename}
	for _, opt := range opts {
		opt(r)
	}
	r.Dict(Couple)
	r.Dict(Outdata)
	return r
}

// Dict returns the named dictionary, creating it on first use.
func (r *Registry) Dict(name string) *Dict {
	d, ok := r.dicts[name]
	if !ok {
		d = newDict(name, r.rename)
		r.dicts[name] = d
	}
	return d
}

// Couple returns the couple dictionary.
func (r *Registry) Couple() *Dict { return r.Dict(Couple) }

// Outdata returns the outdata dictionary.
func (r *Registry) Outdata() *Dict { return r.Dict(Outdata) }

func commit(rename RenameFunc, src, dest string) (copied bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, err
	}
	err = rename(src, dest)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return false, err
	}
	if err := copyFile(src, dest); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func cleanPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return ""
	}
	return filepath.Clean(trimmed)
}
