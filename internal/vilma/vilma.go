package vilma

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kingrea/vilma/internal/cdo"
	"github.com/kingrea/vilma/internal/component"
	"github.com/kingrea/vilma/internal/compute"
	"github.com/kingrea/vilma/internal/config"
	"github.com/kingrea/vilma/internal/couple"
	"github.com/kingrea/vilma/internal/filedict"
	"github.com/kingrea/vilma/internal/forcing"
	"github.com/kingrea/vilma/internal/resolution"
)

// Identity constants.
const (
	Name            = "vilma"
	Version         = "x.x.x"
	Type            = "solid_earth"
	DownloadAddress = "http://some/address/of/a/project"
)

// Identity returns the component info block.
func Identity() component.Info {
	return component.Info{
		Name:            Name,
		Version:         Version,
		Type:            Type,
		DownloadAddress: DownloadAddress,
		CoupleTypes:     []string{couple.TypeIce},
	}
}

// Model is the VILMA component.
type Model struct {
	info       component.Info
	resKey     string
	resolution resolution.Record
	compute    compute.Settings
	lookPath   compute.LookPathFunc
	files      *filedict.Registry
	adapter    *couple.Adapter
	logger     *zap.Logger
}

// Option customizes a Model.
type Option func(*options)

type options struct {
	tool     couple.Tool
	lookPath compute.LookPathFunc
	observer couple.Observer
}

// WithTool replaces the CDO runner built from configuration.
func WithTool(tool couple.Tool) Option {
	return func(o *options) { o.tool = tool }
}

// WithLookPath replaces exec.LookPath when locating the executable.
func WithLookPath(fn compute.LookPathFunc) Option {
	return func(o *options) { o.lookPath = fn }
}

// WithObserver forwards send steps to o.
func WithObserver(o couple.Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// New builds the model from the host environment.
func New(env component.Env, opts ...Option) (*Model, error) {
	cfg := env.Config
	if cfg == nil {
		return nil, fmt.Errorf("vilma: config is required")
	}
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	table, err := cfg.Resolutions()
	if err != nil {
		return nil, fmt.Errorf("vilma: %w", err)
	}
	rec, err := table.Select(cfg.Project.Resolution)
	if err != nil {
		return nil, fmt.Errorf("vilma: %w", err)
	}

	files := Files(cfg)
	tool := o.tool
	if tool == nil {
		tool = cdo.NewRunner(cfg.Project.CDO.Binary, cfg.TmpDir(), cdo.WithLogger(logger.Named("cdo")))
	}
	cp := cfg.Project.Couple
	adapter, err := couple.New(couple.Settings{
		Type:         Type,
		Dir:          cfg.CoupleDir(),
		TargetGrid:   cp.TargetGrid,
		RemapWorkers: cp.RemapWorkers,
		OutputFormat: cp.OutputFormat,
		Timestep:     couple.TimestepPolicy(cp.Timestep),
		CheckIceGrid: cp.CheckIceGrid,
	}, files, tool, couple.WithLogger(logger.Named("couple")),
		couple.WithObserver(o.observer),
		couple.WithLayoutCheck(forcing.IceThickness.CheckFile))
	if err != nil {
		return nil, fmt.Errorf("vilma: %w", err)
	}

	m := &Model{
		info:       Identity(),
		resKey:     resolution.NormalizeKey(cfg.Project.Resolution),
		resolution: rec,
		compute:    cfg.Project.Compute,
		lookPath:   o.lookPath,
		files:      files,
		adapter:    adapter,
		logger:     logger,
	}
	logger.Debug("model constructed",
		zap.String("resolution", m.resKey),
		zap.Strings("unset", rec.Missing()))
	return m, nil
}

// Files builds the coupling registry from configured paths. Unconfigured
// roles are left out; the host may register them before coupling.
func Files(cfg *config.Config) *filedict.Registry {
	files := filedict.NewRegistry()
	cp := cfg.Project.Couple
	if cp.IceFile != "" {
		files.Couple().Set(couple.RoleIceFile, filedict.NewInput(cp.IceFile, cp.IceDestPath()))
	}
	if cp.IceGrid != "" {
		files.Couple().Set(couple.RoleIceGrid, filedict.NewInput(cp.IceGrid, ""))
	}
	if cp.RSLFile != "" {
		files.Outdata().Set(couple.RoleRSL, filedict.NewInput(cp.RSLFile, ""))
	}
	return files
}

// Register installs the model factory under Name.
func Register(reg *component.Registry, opts ...Option) error {
	return reg.Register(Name, func(env component.Env) (component.Component, error) {
		return New(env, opts...)
	})
}

// Info implements component.Component.
func (m *Model) Info() component.Info {
	return m.info
}

// Resolution returns the active resolution key and record.
func (m *Model) Resolution() (string, resolution.Record) {
	return m.resKey, m.resolution
}

// Requirements resolves what the scheduler needs to launch the model.
func (m *Model) Requirements() (compute.Requirements, error) {
	return compute.Resolve(m.compute, m.resolution, m.lookPath)
}

// Files returns the coupling file registry.
func (m *Model) Files() *filedict.Registry {
	return m.files
}

// Adapter returns the coupling adapter.
func (m *Model) Adapter() *couple.Adapter {
	return m.adapter
}

// Receive implements component.Coupler.
func (m *Model) Receive(ctx context.Context, coupleType string) error {
	return m.adapter.Receive(ctx, coupleType)
}

// Send implements component.Coupler.
func (m *Model) Send(ctx context.Context, coupleType string) error {
	return m.adapter.Send(ctx, coupleType)
}
