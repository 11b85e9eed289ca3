package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kingrea/vilma/internal/component"
	"github.com/kingrea/vilma/internal/compute"
)

const fakeCDO = `#!/bin/sh
for last; do :; done
case "$*" in
  *-griddes*)
    printf 'gridtype  = gaussian\nxsize     = 384\nysize     = 192\n'
    exit 0 ;;
esac
echo data > "$last"
`

func execute(t *testing.T, project string, args ...string) (string, error) {
	t.Helper()
	a := &app{logger: zap.NewNop()}
	cmd := newRootCmd(a)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--project", project}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestInitCreatesProjectDir(t *testing.T) {
	project := t.TempDir()
	out, err := execute(t, project, "init")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !strings.Contains(out, "Initialized .vilma") {
		t.Fatalf("unexpected output: %s", out)
	}
	for _, name := range []string{"config.yaml", "logs", "couple", "tmp"} {
		if _, err := os.Stat(filepath.Join(project, ".vilma", name)); err != nil {
			t.Fatalf("expected .vilma/%s: %v", name, err)
		}
	}
}

func TestInfoShowsUnsetResolution(t *testing.T) {
	project := t.TempDir()
	out, err := execute(t, project, "info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"vilma x.x.x", "solid_earth", "resolution default", "unset", "executable is not configured"} {
		if !strings.Contains(out, want) {
			t.Fatalf("info output missing %q:\n%s", want, out)
		}
	}
}

func TestRequirementsNotConfigured(t *testing.T) {
	_, err := execute(t, t.TempDir(), "requirements")
	if !errors.Is(err, compute.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestReceiveRejectsUnknownType(t *testing.T) {
	_, err := execute(t, t.TempDir(), "receive", "ocean")
	if !errors.Is(err, component.ErrUnsupportedCouple) {
		t.Fatalf("expected ErrUnsupportedCouple, got %v", err)
	}
}

func TestSendWritesCouplingFiles(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake cdo is a shell script")
	}
	project := t.TempDir()
	bin := filepath.Join(t.TempDir(), "cdo")
	if err := os.WriteFile(bin, []byte(fakeCDO), 0o755); err != nil {
		t.Fatal(err)
	}
	rsl := filepath.Join(project, "outdata", "rsl.nc")
	if err := os.MkdirAll(filepath.Dir(rsl), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(rsl, []byte("rsl"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VILMA_CDO", bin)
	t.Setenv("VILMA_RSL_FILE", rsl)

	out, err := execute(t, project, "send")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	coupleDir := filepath.Join(project, ".vilma", "couple")
	if !strings.Contains(out, filepath.Join(coupleDir, "solid_earth_file_for_ice.nc")) {
		t.Fatalf("unexpected output: %s", out)
	}
	entries, err := os.ReadDir(coupleDir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := "solid_earth.griddes solid_earth_file_for_ice.nc solid_earth_variables.dat"
	if got := strings.Join(names, " "); got != want {
		t.Fatalf("couple dir = %q, want %q", got, want)
	}
	if _, err := os.Stat(rsl); err != nil {
		t.Fatalf("model output must stay in place: %v", err)
	}
	tmp, err := os.ReadDir(filepath.Join(project, ".vilma", "tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(tmp) != 0 {
		t.Fatalf("expected empty tmp dir, found %d entries", len(tmp))
	}
}
