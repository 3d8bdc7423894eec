// Package tooladdon installs the extra toolchain components some plans
// require before any plan step runs.
//
// Addons are only needed by hosts that run the full lint plan, and only on
// the nightly channel where the components ship separately from the
// toolchain. Installation failures are fatal: a plan that depends on an
// addon cannot produce a meaningful result without it.
package tooladdon

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/gridrun/pkg/execstep"
	"github.com/3leaps/gridrun/pkg/manifest"
)

// Installer runs addon install commands through a step runner.
type Installer struct {
	runner execstep.Runner
	logger *zap.Logger
}

// NewInstaller creates an installer. A nil logger disables logging.
func NewInstaller(runner execstep.Runner, logger *zap.Logger) *Installer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Installer{runner: runner, logger: logger}
}

// Install installs every addon in order. The first failure aborts the
// remaining installs and is returned as an *execstep.InstallError.
func (i *Installer) Install(ctx context.Context, addons []manifest.AddonConfig) error {
	for _, addon := range addons {
		if err := i.installOne(ctx, addon); err != nil {
			return err
		}
	}
	return nil
}

func (i *Installer) installOne(ctx context.Context, addon manifest.AddonConfig) error {
	if len(addon.Install) == 0 {
		return &execstep.InstallError{
			Tool:    addon.Name,
			Version: addon.Version,
			Err:     fmt.Errorf("no install command configured"),
		}
	}

	i.logger.Info("installing tool addon",
		zap.String("tool", addon.Name),
		zap.String("version", addon.Version))

	step := execstep.Step{
		Stage: execstep.StageInstall,
		Name:  addonLabel(addon),
		Argv:  addon.Install,
	}
	if err := i.runner.Run(ctx, step); err != nil {
		i.logger.Error("tool addon install failed",
			zap.String("tool", addon.Name),
			zap.String("version", addon.Version),
			zap.Error(err))
		return &execstep.InstallError{Tool: addon.Name, Version: addon.Version, Err: err}
	}

	i.logger.Info("tool addon installed",
		zap.String("tool", addon.Name),
		zap.String("version", addon.Version))
	return nil
}

func addonLabel(addon manifest.AddonConfig) string {
	if addon.Version != "" {
		return addon.Name + "@" + addon.Version
	}
	return addon.Name
}
