package couple

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/vilma/internal/cdo"
	"github.com/kingrea/vilma/internal/filedict"
)

// Couple types the adapter understands.
const TypeIce = "ice"

// File roles in the couple and outdata dictionaries.
const (
	RoleIceFile = "ice_file"
	RoleIceGrid = "ice_grid"
	RoleRSL     = "rsl"
)

var (
	// ErrIncompatibleType is returned for couple types other than TypeIce.
	ErrIncompatibleType = errors.New("couple: incompatible couple type")
	// ErrGridMismatch is returned when the ice forcing grid is not the
	// expected shape and grid checking is enabled.
	ErrGridMismatch = errors.New("couple: ice forcing grid mismatch")
)

// Tool is the subset of CDO the adapter depends on.
type Tool interface {
	Remapcon(ctx context.Context, grid, input, options string) (string, error)
	Seltimestep(ctx context.Context, step, input string) (string, error)
	Griddes(ctx context.Context, input string) ([]string, error)
	CleanTempDir() error
}

// GridShape is the expected horizontal size of the inbound ice forcing.
type GridShape struct {
	XSize int
	YSize int
}

// ExpectedIceGrid is the lon/lat shape of the ice thickness file the
// ice-sheet model hands over (lon=512, lat=256).
var ExpectedIceGrid = GridShape{XSize: 512, YSize: 256}

// Settings configures an Adapter.
type Settings struct {
	// Type is the component type; it prefixes staged roles and descriptor
	// file names.
	Type string
	// Dir is the coupling directory descriptor files are written to.
	Dir string

	TargetGrid   string
	RemapWorkers int
	OutputFormat string
	Timestep     TimestepPolicy
	CheckIceGrid bool
}

func (s Settings) validate() error {
	if strings.TrimSpace(s.Type) == "" {
		return fmt.Errorf("couple: type is required")
	}
	if strings.TrimSpace(s.Dir) == "" {
		return fmt.Errorf("couple: dir is required")
	}
	if strings.TrimSpace(s.TargetGrid) == "" {
		return fmt.Errorf("couple: target grid is required")
	}
	if s.RemapWorkers < 1 {
		return fmt.Errorf("couple: remap workers must be >= 1")
	}
	if _, err := s.Timestep.Selector(); err != nil {
		return err
	}
	return nil
}

// Step names one stage of SendIce.
type Step string

const (
	StepGenerateForcing     Step = "generate-forcing"
	StepGridDescription     Step = "grid-description"
	StepVariableDescription Step = "variable-description"
	StepFinalize            Step = "finalize"
)

// SendSteps lists SendIce stages in execution order.
var SendSteps = []Step{StepGenerateForcing, StepGridDescription, StepVariableDescription, StepFinalize}

// StepState is reported to an Observer.
type StepState string

const (
	StepStarted StepState = "started"
	StepDone    StepState = "done"
	StepFailed  StepState = "failed"
)

// Observer is notified as SendIce moves through its steps. err is set only
// for StepFailed.
type Observer func(step Step, state StepState, err error)

// LayoutCheck validates the variable layout of an inbound forcing file.
type LayoutCheck func(path string) error

// Adapter runs the ice-sheet exchange for one component.
type Adapter struct {
	settings    Settings
	files       *filedict.Registry
	tool        Tool
	logger      *zap.Logger
	observer    Observer
	layoutCheck LayoutCheck
	cleanup     []string
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithObserver installs a step observer.
func WithObserver(o Observer) Option {
	return func(a *Adapter) {
		a.observer = o
	}
}

// WithLayoutCheck runs check on the raw ice file before the grid check
// when CheckIceGrid is set.
func WithLayoutCheck(check LayoutCheck) Option {
	return func(a *Adapter) {
		a.layoutCheck = check
	}
}

// New builds an adapter over the given file registry and tool.
func New(settings Settings, files *filedict.Registry, tool Tool, opts ...Option) (*Adapter, error) {
	if err := settings.validate(); err != nil {
		return nil, err
	}
	if files == nil {
		return nil, fmt.Errorf("couple: file registry is required")
	}
	if tool == nil {
		return nil, fmt.Errorf("couple: tool is required")
	}
	if settings.OutputFormat == "" {
		settings.OutputFormat = "nc"
	}
	a := &Adapter{settings: settings, files: files, tool: tool, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// CompatibleTypes lists the couple types Receive and Send accept.
func (a *Adapter) CompatibleTypes() []string {
	return []string{TypeIce}
}

// SetObserver replaces the step observer.
func (a *Adapter) SetObserver(o Observer) {
	a.observer = o
}

// Receive dispatches on coupleType.
func (a *Adapter) Receive(ctx context.Context, coupleType string) error {
	switch strings.ToLower(strings.TrimSpace(coupleType)) {
	case TypeIce:
		return a.ReceiveIce(ctx)
	default:
		return fmt.Errorf("%w %q", ErrIncompatibleType, coupleType)
	}
}

// Send dispatches on coupleType.
func (a *Adapter) Send(ctx context.Context, coupleType string) error {
	switch strings.ToLower(strings.TrimSpace(coupleType)) {
	case TypeIce:
		return a.SendIce(ctx)
	default:
		return fmt.Errorf("%w %q", ErrIncompatibleType, coupleType)
	}
}

// TrackTemp adds paths to the list removed after a successful send.
func (a *Adapter) TrackTemp(paths ...string) {
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			a.cleanup = append(a.cleanup, p)
		}
	}
}

// CleanupList returns the paths pending removal.
func (a *Adapter) CleanupList() []string {
	return append([]string(nil), a.cleanup...)
}

// StagedRole is the couple role the outgoing forcing is registered under.
func (a *Adapter) StagedRole() string {
	return a.settings.Type + "_file"
}

// ForcingPath is where the outgoing forcing is committed.
func (a *Adapter) ForcingPath() string {
	return filepath.Join(a.settings.Dir, a.settings.Type+"_file_for_ice.nc")
}

// GridDescriptionPath is the grid descriptor written by SendIce.
func (a *Adapter) GridDescriptionPath() string {
	return filepath.Join(a.settings.Dir, a.settings.Type+".griddes")
}

// VariableDescriptionPath is the variables descriptor written by SendIce.
func (a *Adapter) VariableDescriptionPath() string {
	return filepath.Join(a.settings.Dir, a.settings.Type+"_variables.dat")
}

// ReceiveIce regrids the registered ice thickness file onto the target
// grid with conservative remapping. The output becomes the ice_file's
// current location and only that entry is committed; forcing left staged
// by a failed send stays where it is.
func (a *Adapter) ReceiveIce(ctx context.Context) error {
	couple := a.files.Couple()
	iceFile, err := couple.Lookup(RoleIceFile)
	if err != nil {
		return err
	}
	iceGrid, err := couple.Lookup(RoleIceGrid)
	if err != nil {
		return err
	}
	input := "-setgrid," + iceGrid.Src + " " + iceFile.Src
	log := a.logger.With(zap.String("exchange", "receive_ice"), zap.String("id", uuid.NewString()))

	if a.settings.CheckIceGrid {
		if a.layoutCheck != nil {
			if err := a.layoutCheck(iceFile.Src); err != nil {
				return fmt.Errorf("%w: %w", ErrGridMismatch, err)
			}
		}
		if err := a.checkIceGrid(ctx, input); err != nil {
			return err
		}
	}
	options := fmt.Sprintf("-P %d -f %s", a.settings.RemapWorkers, a.settings.OutputFormat)
	out, err := a.tool.Remapcon(ctx, a.settings.TargetGrid, input, options)
	if err != nil {
		return fmt.Errorf("couple: remap ice forcing: %w", err)
	}
	iceFile.MoveTo(out)
	leftover, err := couple.Commit(RoleIceFile)
	a.TrackTemp(leftover)
	if err != nil {
		return err
	}
	log.Info("ice forcing regridded",
		zap.String("grid", a.settings.TargetGrid),
		zap.String("source", iceFile.Src),
		zap.String("dest", iceFile.Dest))
	return nil
}

func (a *Adapter) checkIceGrid(ctx context.Context, input string) error {
	lines, err := a.tool.Griddes(ctx, input)
	if err != nil {
		return fmt.Errorf("couple: describe ice forcing grid: %w", err)
	}
	gd, err := cdo.ParseGriddes(lines)
	if err != nil {
		return err
	}
	x, err := gd.Size("xsize")
	if err != nil {
		return err
	}
	y, err := gd.Size("ysize")
	if err != nil {
		return err
	}
	if x != ExpectedIceGrid.XSize || y != ExpectedIceGrid.YSize {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrGridMismatch, x, y, ExpectedIceGrid.XSize, ExpectedIceGrid.YSize)
	}
	return nil
}

// SendIce prepares the solid-earth forcing for the ice-sheet model. Each
// step runs only after the previous one succeeded; temporaries are removed
// only once all steps are done.
func (a *Adapter) SendIce(ctx context.Context) error {
	log := a.logger.With(zap.String("exchange", "send_ice"), zap.String("id", uuid.NewString()))
	steps := map[Step]func(context.Context) error{
		StepGenerateForcing:     a.generateIceForcingFile,
		StepGridDescription:     a.writeGridDescription,
		StepVariableDescription: a.writeVariableDescription,
		StepFinalize:            a.finalize,
	}
	for _, step := range SendSteps {
		a.notify(step, StepStarted, nil)
		if err := steps[step](ctx); err != nil {
			err = fmt.Errorf("couple: send ice: %s: %w", step, err)
			a.notify(step, StepFailed, err)
			log.Error("send step failed", zap.String("step", string(step)), zap.Error(err))
			return err
		}
		a.notify(step, StepDone, nil)
		log.Debug("send step done", zap.String("step", string(step)))
	}
	log.Info("solid-earth forcing sent", zap.String("forcing", a.ForcingPath()))
	return nil
}

func (a *Adapter) generateIceForcingFile(ctx context.Context) error {
	rsl, err := a.files.Outdata().Lookup(RoleRSL)
	if err != nil {
		return err
	}
	selector, err := a.settings.Timestep.Selector()
	if err != nil {
		return err
	}
	out, err := a.tool.Seltimestep(ctx, selector, rsl.Current())
	if err != nil {
		return err
	}
	a.files.Couple().Set(a.StagedRole(), filedict.NewFile(out, a.ForcingPath()))
	return nil
}

func (a *Adapter) writeGridDescription(ctx context.Context) error {
	staged, err := a.files.Couple().Lookup(a.StagedRole())
	if err != nil {
		return err
	}
	lines, err := a.tool.Griddes(ctx, staged.Current())
	if err != nil {
		return err
	}
	return writeDescriptor(a.GridDescriptionPath(), strings.Join(lines, "\n"))
}

func (a *Adapter) writeVariableDescription(context.Context) error {
	return writeDescriptor(a.VariableDescriptionPath(), VariableDescription(OfferedVariables))
}

func (a *Adapter) finalize(context.Context) error {
	leftovers, err := a.files.Couple().Digest()
	a.TrackTemp(leftovers...)
	if err != nil {
		return err
	}
	for _, path := range a.cleanup {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	a.cleanup = nil
	return a.tool.CleanTempDir()
}

func (a *Adapter) notify(step Step, state StepState, err error) {
	if a.observer != nil {
		a.observer(step, state, err)
	}
}

func writeDescriptor(path, body string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(body), 0o644)
}
