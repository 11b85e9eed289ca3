package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/vilma/internal/component"
	"github.com/kingrea/vilma/internal/config"
	"github.com/kingrea/vilma/internal/couple"
	"github.com/kingrea/vilma/internal/tui"
	"github.com/kingrea/vilma/internal/vilma"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create .vilma/ with a default config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.InitDir(a.projectDir); err != nil {
				return fmt.Errorf("init %s: %w", config.VilmaDir, err)
			}
			a.logger.Info("project initialized", zap.String("project", a.projectDir))
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s in %s\n", config.VilmaDir, a.projectDir)
			return nil
		},
	}
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show identity, resolution and launch requirements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.resolveModel()
			if err != nil {
				return err
			}
			key, rec := model.Resolution()
			view := tui.InfoView{Info: model.Info(), ResolutionKey: key, Resolution: rec}
			req, err := model.Requirements()
			if err != nil {
				view.RequirementsErr = err
			} else {
				view.Requirements = &req
			}
			fmt.Fprint(cmd.OutOrStdout(), view.Render())
			return nil
		},
	}
}

func newRequirementsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "requirements",
		Short: "Resolve executable, command, task and thread counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := a.resolveModel()
			if err != nil {
				return err
			}
			req, err := model.Requirements()
			if err != nil {
				return fmt.Errorf("requirements: %w", err)
			}
			var b strings.Builder
			tui.RenderRequirements(&b, req)
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		},
	}
}

func newReceiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receive [type]",
		Short: "Regrid inbound forcing onto the model grid",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coupleType := coupleTypeArg(args)
			model, err := a.resolveCoupler(coupleType)
			if err != nil {
				return err
			}
			if err := model.Receive(cmd.Context(), coupleType); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Received %s forcing\n", coupleType)
			return nil
		},
	}
}

func newSendCmd(a *app) *cobra.Command {
	var progress bool
	cmd := &cobra.Command{
		Use:   "send [type]",
		Short: "Prepare solid-earth forcing for the coupled model",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coupleType := coupleTypeArg(args)
			model, err := a.resolveCoupler(coupleType)
			if err != nil {
				return err
			}
			if progress {
				title := fmt.Sprintf("Sending %s forcing to %s", vilma.Type, coupleType)
				err = tui.Run(cmd.Context(), title, couple.SendSteps, func(ctx context.Context, observe couple.Observer) error {
					model.Adapter().SetObserver(observe)
					return model.Send(ctx, coupleType)
				})
			} else {
				err = model.Send(cmd.Context(), coupleType)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s forcing: %s\n", coupleType, model.Adapter().ForcingPath())
			return nil
		},
	}
	cmd.Flags().BoolVar(&progress, "progress", false, "render step progress in the terminal")
	return cmd
}

func (a *app) registry() (*component.Registry, component.Env, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, component.Env{}, err
	}
	reg := component.NewRegistry()
	if err := vilma.Register(reg); err != nil {
		return nil, component.Env{}, err
	}
	return reg, component.Env{Config: cfg, Logger: a.logger}, nil
}

func (a *app) resolveModel() (*vilma.Model, error) {
	reg, env, err := a.registry()
	if err != nil {
		return nil, err
	}
	comp, err := reg.Resolve(vilma.Name, env)
	if err != nil {
		return nil, fmt.Errorf("resolve component: %w", err)
	}
	return asModel(comp)
}

func (a *app) resolveCoupler(coupleType string) (*vilma.Model, error) {
	reg, env, err := a.registry()
	if err != nil {
		return nil, err
	}
	comp, err := reg.ResolveCoupler(vilma.Name, coupleType, env)
	if err != nil {
		return nil, fmt.Errorf("resolve component: %w", err)
	}
	return asModel(comp)
}

func asModel(comp component.Component) (*vilma.Model, error) {
	model, ok := comp.(*vilma.Model)
	if !ok {
		return nil, fmt.Errorf("resolve component: %s is %T", vilma.Name, comp)
	}
	return model, nil
}

func coupleTypeArg(args []string) string {
	if len(args) == 0 {
		return couple.TypeIce
	}
	return strings.TrimSpace(args[0])
}
