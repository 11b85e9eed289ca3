package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func envFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, projectDir, body string) {
	t.Helper()
	dir := filepath.Join(projectDir, VilmaDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(strings.TrimSpace(body)), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	projectDir := t.TempDir()
	c, err := load(projectDir, noEnv)
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	if c.Project.Version != 1 {
		t.Fatalf("expected default version == 1, got %d", c.Project.Version)
	}
	if c.Project.Resolution != "default" {
		t.Fatalf("expected default resolution, got %q", c.Project.Resolution)
	}
	if want := filepath.Join(projectDir, ".vilma", "couple"); c.CoupleDir() != want {
		t.Fatalf("expected couple dir %s, got %s", want, c.CoupleDir())
	}
	if want := filepath.Join(projectDir, ".vilma", "tmp"); c.TmpDir() != want {
		t.Fatalf("expected tmp dir %s, got %s", want, c.TmpDir())
	}
	cp := c.Project.Couple
	if cp.TargetGrid != "n128" || cp.RemapWorkers != 8 || cp.OutputFormat != "nc" || cp.Timestep != TimestepLast {
		t.Fatalf("unexpected couple defaults %+v", cp)
	}
}

func TestInitDirWritesParsableDefault(t *testing.T) {
	projectDir := t.TempDir()
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir: %v", err)
	}
	for _, sub := range []string{"logs", "couple", "tmp", "config.yaml"} {
		if _, err := os.Stat(filepath.Join(projectDir, VilmaDir, sub)); err != nil {
			t.Fatalf("expected %s: %v", sub, err)
		}
	}
	c, err := load(projectDir, noEnv)
	if err != nil {
		t.Fatalf("default config must load: %v", err)
	}
	if c.Project.CDO.Binary != "cdo" {
		t.Fatalf("unexpected cdo binary %q", c.Project.CDO.Binary)
	}
	// second call keeps the existing file
	writeConfig(t, projectDir, "version: 2")
	if err := InitDir(projectDir); err != nil {
		t.Fatalf("InitDir rerun: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(projectDir, VilmaDir, "config.yaml"))
	if string(data) != "version: 2" {
		t.Fatalf("InitDir overwrote config: %q", data)
	}
}

func TestLoadParsesYaml(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
version: 1
resolution: T63L47
resolutions:
  T63L47:
    lateral_resolution: T63
    nx: 192
    ny: 96
    nz: 47
    timestep: 450s
compute:
  executable: /opt/vilma/bin/vilma.x
  points_per_task: 1000
couple:
  timestep: First
  ice_file: forcing/ice.nc
  ice_grid: /data/grids/ice_grid.txt
  rsl_file: outdata/vilma/rsl.nc
`)
	c, err := load(projectDir, noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	table, err := c.Resolutions()
	if err != nil {
		t.Fatalf("resolutions: %v", err)
	}
	rec, err := table.Select(c.Project.Resolution)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if rec.Nx != 192 || rec.Timestep != 450*time.Second {
		t.Fatalf("unexpected record %+v", rec)
	}
	if c.Project.Couple.Timestep != TimestepFirst {
		t.Fatalf("timestep should normalize to lower case, got %q", c.Project.Couple.Timestep)
	}
	if want := filepath.Join(projectDir, "forcing", "ice.nc"); c.Project.Couple.IceFile != want {
		t.Fatalf("expected ice file %s, got %s", want, c.Project.Couple.IceFile)
	}
	if c.Project.Couple.IceGrid != "/data/grids/ice_grid.txt" {
		t.Fatalf("absolute path must be kept, got %s", c.Project.Couple.IceGrid)
	}
	if c.Project.Couple.RemapWorkers != 8 {
		t.Fatalf("missing keys should keep defaults, got %d workers", c.Project.Couple.RemapWorkers)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	projectDir := t.TempDir()
	env := map[string]string{
		"VILMA_TIMESTEP":  "first",
		"VILMA_ICE_FILE":  "/scratch/ice.nc",
		"VILMA_NUM_TASKS": "32",
		"VILMA_CDO":       "/sw/cdo/bin/cdo",
	}
	c, err := load(projectDir, envFrom(env))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Project.Couple.Timestep != TimestepFirst || c.Project.Couple.IceFile != "/scratch/ice.nc" {
		t.Fatalf("env not applied: %+v", c.Project.Couple)
	}
	if c.Project.Compute.NumTasks != 32 || c.Project.CDO.Binary != "/sw/cdo/bin/cdo" {
		t.Fatalf("env not applied: %+v %+v", c.Project.Compute, c.Project.CDO)
	}

	env["VILMA_NUM_TASKS"] = "many"
	if _, err := load(projectDir, envFrom(env)); err == nil {
		t.Fatalf("expected error for non-numeric VILMA_NUM_TASKS")
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"timestep": "couple:\n  timestep: middle",
		"workers":  "couple:\n  remap_workers: -2",
		"dims":     "resolutions:\n  bad:\n    nx: -1",
		"yaml":     "couple: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			projectDir := t.TempDir()
			writeConfig(t, projectDir, body)
			if _, err := load(projectDir, noEnv); err == nil {
				t.Fatalf("expected validation error but got none")
			}
		})
	}
}

func TestCommandPathsResolveAgainstProject(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
compute:
  executable: bin/vilma
cdo:
  binary: cdo
`)
	c, err := load(projectDir, noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := filepath.Join(projectDir, "bin", "vilma"); c.Project.Compute.Executable != want {
		t.Fatalf("executable = %s, want %s", c.Project.Compute.Executable, want)
	}
	if c.Project.CDO.Binary != "cdo" {
		t.Fatalf("bare binary must stay a PATH name, got %s", c.Project.CDO.Binary)
	}

	c, err = load(projectDir, envFrom(map[string]string{"VILMA_CDO": "./tools/cdo", "VILMA_EXECUTABLE": "vilma.x"}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := filepath.Join(projectDir, "tools", "cdo"); c.Project.CDO.Binary != want {
		t.Fatalf("binary = %s, want %s", c.Project.CDO.Binary, want)
	}
	if c.Project.Compute.Executable != "vilma.x" {
		t.Fatalf("bare executable must stay a PATH name, got %s", c.Project.Compute.Executable)
	}
}

func TestIceDestMustDifferFromIceFile(t *testing.T) {
	projectDir := t.TempDir()
	writeConfig(t, projectDir, `
couple:
  ice_file: forcing/ice.nc
  ice_dest: ./forcing/ice.nc
`)
	_, err := load(projectDir, noEnv)
	if err == nil || !strings.Contains(err.Error(), "ice_dest must differ") {
		t.Fatalf("expected ice_dest error, got %v", err)
	}

	writeConfig(t, projectDir, `
couple:
  ice_file: .vilma/couple/ice_file_for_vilma.nc
`)
	if _, err := load(projectDir, noEnv); err == nil {
		t.Fatalf("expected error when ice_file is the default destination")
	}

	writeConfig(t, projectDir, `
couple:
  ice_file: forcing/ice.nc
`)
	c, err := load(projectDir, noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if want := filepath.Join(c.CoupleDir(), DefaultIceDestName); c.Project.Couple.IceDestPath() != want {
		t.Fatalf("ice dest = %s, want %s", c.Project.Couple.IceDestPath(), want)
	}
}
