// internal/config/config.go
//
// This package handles configuration and the .vilma directory structure.
// Every run directory that hosts the component gets a .vilma/ folder.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/vilma/internal/compute"
	"github.com/kingrea/vilma/internal/resolution"
)

const (
	// VilmaDir is the name of the directory we create in each run directory
	VilmaDir = ".vilma"

	defaultTargetGrid   = "n128"
	defaultRemapWorkers = 8
	defaultOutputFormat = "nc"
	defaultTimestep     = TimestepLast
	defaultCoupleDir    = VilmaDir + "/couple"
	defaultTmpDir       = VilmaDir + "/tmp"
	defaultCDOBinary    = "cdo"
)

// DefaultIceDestName is the file name regridded ice forcing is committed
// to inside the couple dir when couple.ice_dest is unset.
const DefaultIceDestName = "ice_file_for_vilma.nc"

// Timestep policies for cutting the solid-earth forcing out of rsl output.
const (
	TimestepLast  = "last"
	TimestepFirst = "first"
)

const defaultProjectConfigYAML = `# vilma component configuration
# Relative paths resolve against the run directory.
version: 1

# Resolution key; "default" is the built-in table entry with every attribute unset.
resolution: default

# Extra resolutions, keyed by name.
# resolutions:
#   T63L47:
#     lateral_resolution: T63
#     nx: 192
#     ny: 96
#     nz: 47
#     timestep: 450s

compute:
  executable: ""
  num_threads: 1

couple:
  dir: .vilma/couple
  target_grid: n128
  remap_workers: 8
  output_format: nc
  # Which rsl timestep to send to the ice sheet: last or first.
  timestep: last
  check_ice_grid: false
  ice_file: ""
  ice_grid: ""
  rsl_file: ""

cdo:
  binary: cdo
  tmp_dir: .vilma/tmp
`

// CoupleConfig captures the ice-sheet exchange settings.
type CoupleConfig struct {
	Dir          string `yaml:"dir"`
	TargetGrid   string `yaml:"target_grid"`
	RemapWorkers int    `yaml:"remap_workers"`
	OutputFormat string `yaml:"output_format"`
	Timestep     string `yaml:"timestep"`
	CheckIceGrid bool   `yaml:"check_ice_grid,omitempty"`
	IceFile      string `yaml:"ice_file,omitempty"`
	IceGrid      string `yaml:"ice_grid,omitempty"`
	// IceDest is where the regridded ice forcing is committed. Empty means
	// <dir>/ice_file_for_vilma.nc.
	IceDest string `yaml:"ice_dest,omitempty"`
	RSLFile string `yaml:"rsl_file,omitempty"`
}

// CDOConfig locates the CDO binary and its scratch directory.
type CDOConfig struct {
	Binary string `yaml:"binary"`
	TmpDir string `yaml:"tmp_dir"`
}

// ProjectConfig models .vilma/config.yaml.
type ProjectConfig struct {
	Version     int              `yaml:"version"`
	Resolution  string           `yaml:"resolution"`
	Resolutions resolution.Table `yaml:"resolutions,omitempty"`
	Compute     compute.Settings `yaml:"compute"`
	Couple      CoupleConfig     `yaml:"couple"`
	CDO         CDOConfig        `yaml:"cdo"`
}

// Config holds the runtime configuration for the component.
type Config struct {
	// ProjectDir is the run directory the host works in
	ProjectDir string

	// VilmaProjectDir is ProjectDir/.vilma
	VilmaProjectDir string

	Project ProjectConfig
}

// InitDir creates the .vilma directory structure in the given run directory.
//
// Structure created:
// .vilma/
// ├── config.yaml
// ├── logs/      <- component log
// ├── couple/    <- descriptor files and committed forcing
// └── tmp/       <- CDO scratch files
func InitDir(projectDir string) error {
	vilmaDir := filepath.Join(projectDir, VilmaDir)
	dirs := []string{
		filepath.Join(vilmaDir, "logs"),
		filepath.Join(vilmaDir, "couple"),
		filepath.Join(vilmaDir, "tmp"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ensureProjectConfig(filepath.Join(vilmaDir, "config.yaml"))
}

// NewConfig creates a Config from .vilma/config.yaml and the process environment.
func NewConfig(projectDir string) (*Config, error) {
	return load(projectDir, os.LookupEnv)
}

func load(projectDir string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{
		ProjectDir:      projectDir,
		VilmaProjectDir: filepath.Join(projectDir, VilmaDir),
		Project:         defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.Project.applyEnv(lookup); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Project.normalize(cfg.ProjectDir)
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.VilmaProjectDir, "logs")
}

// CoupleDir returns the directory descriptor files are written to
func (c *Config) CoupleDir() string {
	return c.Project.Couple.Dir
}

// TmpDir returns the CDO scratch directory
func (c *Config) TmpDir() string {
	return c.Project.CDO.TmpDir
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.VilmaProjectDir, "config.yaml")
}

// Resolutions returns the built-in table merged with configured entries.
func (c *Config) Resolutions() (resolution.Table, error) {
	return resolution.Builtin().Merge(c.Project.Resolutions)
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	parsed.applyDefaults()
	c.Project = parsed
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version:    1,
		Resolution: resolution.DefaultKey,
		Compute:    compute.Settings{NumThreads: 1},
		Couple: CoupleConfig{
			Dir:          defaultCoupleDir,
			TargetGrid:   defaultTargetGrid,
			RemapWorkers: defaultRemapWorkers,
			OutputFormat: defaultOutputFormat,
			Timestep:     defaultTimestep,
		},
		CDO: CDOConfig{
			Binary: defaultCDOBinary,
			TmpDir: defaultTmpDir,
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	def := defaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = def.Version
	}
	if strings.TrimSpace(pc.Couple.Dir) == "" {
		pc.Couple.Dir = def.Couple.Dir
	}
	if strings.TrimSpace(pc.Couple.TargetGrid) == "" {
		pc.Couple.TargetGrid = def.Couple.TargetGrid
	}
	if pc.Couple.RemapWorkers == 0 {
		pc.Couple.RemapWorkers = def.Couple.RemapWorkers
	}
	if strings.TrimSpace(pc.Couple.OutputFormat) == "" {
		pc.Couple.OutputFormat = def.Couple.OutputFormat
	}
	if strings.TrimSpace(pc.Couple.Timestep) == "" {
		pc.Couple.Timestep = def.Couple.Timestep
	}
	if strings.TrimSpace(pc.CDO.Binary) == "" {
		pc.CDO.Binary = def.CDO.Binary
	}
	if strings.TrimSpace(pc.CDO.TmpDir) == "" {
		pc.CDO.TmpDir = def.CDO.TmpDir
	}
}

// applyEnv layers VILMA_* environment variables over the file settings.
func (pc *ProjectConfig) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"VILMA_RESOLUTION": &pc.Resolution,
		"VILMA_COUPLE_DIR": &pc.Couple.Dir,
		"VILMA_ICE_FILE":   &pc.Couple.IceFile,
		"VILMA_ICE_GRID":   &pc.Couple.IceGrid,
		"VILMA_RSL_FILE":   &pc.Couple.RSLFile,
		"VILMA_TIMESTEP":   &pc.Couple.Timestep,
		"VILMA_CDO":        &pc.CDO.Binary,
		"VILMA_EXECUTABLE": &pc.Compute.Executable,
	}
	for key, target := range str {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = v
		}
	}
	if v, ok := lookup("VILMA_NUM_TASKS"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("VILMA_NUM_TASKS: %w", err)
		}
		pc.Compute.NumTasks = n
	}
	return nil
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Resolution = resolution.NormalizeKey(pc.Resolution)
	pc.Couple.TargetGrid = strings.TrimSpace(pc.Couple.TargetGrid)
	pc.Couple.OutputFormat = strings.TrimSpace(pc.Couple.OutputFormat)
	pc.Couple.Timestep = strings.ToLower(strings.TrimSpace(pc.Couple.Timestep))
	pc.Couple.Dir = resolvePath(base, pc.Couple.Dir)
	pc.Couple.IceFile = resolvePath(base, pc.Couple.IceFile)
	pc.Couple.IceGrid = resolvePath(base, pc.Couple.IceGrid)
	pc.Couple.IceDest = resolvePath(base, pc.Couple.IceDest)
	pc.Couple.RSLFile = resolvePath(base, pc.Couple.RSLFile)
	pc.CDO.Binary = resolveCommand(base, pc.CDO.Binary)
	pc.CDO.TmpDir = resolvePath(base, pc.CDO.TmpDir)
	pc.Compute.Executable = resolveCommand(base, pc.Compute.Executable)
}

// IceDestPath returns where regridded ice forcing is committed.
func (cc CoupleConfig) IceDestPath() string {
	if cc.IceDest != "" {
		return cc.IceDest
	}
	return filepath.Join(cc.Dir, DefaultIceDestName)
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if pc.Couple.TargetGrid == "" {
		return fmt.Errorf("couple.target_grid is required")
	}
	if pc.Couple.RemapWorkers < 1 {
		return fmt.Errorf("couple.remap_workers must be >= 1")
	}
	switch pc.Couple.Timestep {
	case TimestepLast, TimestepFirst:
	default:
		return fmt.Errorf("couple.timestep must be '%s' or '%s'", TimestepLast, TimestepFirst)
	}
	if pc.Couple.IceFile != "" && pc.Couple.IceFile == pc.Couple.IceDestPath() {
		return fmt.Errorf("couple.ice_dest must differ from couple.ice_file (%s)", pc.Couple.IceFile)
	}
	if pc.CDO.Binary == "" {
		return fmt.Errorf("cdo.binary is required")
	}
	if _, err := resolution.Builtin().Merge(pc.Resolutions); err != nil {
		return err
	}
	return nil
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

// resolveCommand resolves a program name against base only when it is a
// path; bare names are left for PATH lookup.
func resolveCommand(base, name string) string {
	trimmed := strings.TrimSpace(name)
	if !strings.ContainsRune(trimmed, '/') && !strings.ContainsRune(trimmed, filepath.Separator) {
		return trimmed
	}
	return resolvePath(base, trimmed)
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}
