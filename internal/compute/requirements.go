// Package compute derives what the host scheduler needs to launch the model:
// executable, argv, task and thread counts.
package compute

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kingrea/vilma/internal/resolution"
)

var (
	// ErrNotConfigured means no executable has been set for the model.
	ErrNotConfigured = errors.New("compute: executable is not configured")
	// ErrExecutableMissing means the configured executable could not be found.
	ErrExecutableMissing = errors.New("compute: executable not found")
	// ErrResolutionIncomplete means the task count cannot be derived from
	// the active resolution.
	ErrResolutionIncomplete = errors.New("compute: resolution is incomplete")
)

// Settings is the compute section of the project configuration.
type Settings struct {
	Executable    string `yaml:"executable"`
	Command       string `yaml:"command,omitempty"`
	NumTasks      int    `yaml:"num_tasks,omitempty"`
	NumThreads    int    `yaml:"num_threads,omitempty"`
	PointsPerTask int    `yaml:"points_per_task,omitempty"`
}

// Requirements is what the scheduler launches.
type Requirements struct {
	Executable string
	Command    []string
	NumTasks   int
	NumThreads int
}

// LookPathFunc finds an executable by name.
type LookPathFunc func(file string) (string, error)

// Resolve validates settings against the active resolution record and
// returns launch requirements. A nil lookPath uses exec.LookPath.
func Resolve(settings Settings, rec resolution.Record, lookPath LookPathFunc) (Requirements, error) {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	name := strings.TrimSpace(settings.Executable)
	if name == "" {
		return Requirements{}, ErrNotConfigured
	}
	executable, err := locate(name, lookPath)
	if err != nil {
		return Requirements{}, err
	}
	tasks, err := taskCount(settings, rec)
	if err != nil {
		return Requirements{}, err
	}
	threads := settings.NumThreads
	if threads < 0 {
		return Requirements{}, fmt.Errorf("compute: num_threads must be >= 0")
	}
	if threads == 0 {
		threads = 1
	}
	command := []string{executable}
	if tmpl := strings.TrimSpace(settings.Command); tmpl != "" {
		command = expandCommand(tmpl, executable)
	}
	return Requirements{
		Executable: executable,
		Command:    command,
		NumTasks:   tasks,
		NumThreads: threads,
	}, nil
}

func locate(name string, lookPath LookPathFunc) (string, error) {
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) {
		info, err := os.Stat(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s", ErrExecutableMissing, name)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%w: %s is a directory", ErrExecutableMissing, name)
		}
		return filepath.Clean(name), nil
	}
	path, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrExecutableMissing, name, err)
	}
	return path, nil
}

func taskCount(settings Settings, rec resolution.Record) (int, error) {
	switch {
	case settings.NumTasks < 0:
		return 0, fmt.Errorf("compute: num_tasks must be >= 0")
	case settings.NumTasks > 0:
		return settings.NumTasks, nil
	case settings.PointsPerTask < 0:
		return 0, fmt.Errorf("compute: points_per_task must be >= 0")
	case settings.PointsPerTask == 0:
		return 0, fmt.Errorf("%w: set num_tasks or points_per_task", ErrResolutionIncomplete)
	}
	points := rec.Gridpoints()
	if points == 0 {
		return 0, fmt.Errorf("%w: missing %s", ErrResolutionIncomplete, strings.Join(rec.Missing(), ", "))
	}
	return (points + settings.PointsPerTask - 1) / settings.PointsPerTask, nil
}

// expandCommand splits the template into argv and substitutes {executable}.
func expandCommand(tmpl, executable string) []string {
	fields := strings.Fields(tmpl)
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, "{executable}", executable)
	}
	return fields
}
