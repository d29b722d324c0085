package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/systemstart/deployctl/pkg/command"
)

// buildApp installs dependencies and builds the application artifact in
// the configured app directory.
func (d *Deployer) buildApp(ctx context.Context) error {
	appDir := d.cfg.ResolvePath(d.cfg.Project.AppDir)
	if err := requireDir(appDir); err != nil {
		return fmt.Errorf("app directory: %w", err)
	}

	slog.Info("installing dependencies", "dir", appDir)
	install := command.Command{
		Program: "npm",
		Args:    []string{"install", "--legacy-peer-deps"},
		Dir:     appDir,
		Timeout: d.cfg.Deploy.BuildTimeout.Std(),
	}
	if out := d.exec.Run(ctx, install); !out.Ok {
		return fmt.Errorf("npm install: %s", out.LastErr)
	}

	slog.Info("building application", "dir", appDir)
	build := command.Command{
		Program: "npm",
		Args:    []string{"run", "build"},
		Dir:     appDir,
		Timeout: d.cfg.Deploy.BuildTimeout.Std(),
	}
	if out := d.exec.Run(ctx, build); !out.Ok {
		return fmt.Errorf("npm run build: %s", out.LastErr)
	}

	return nil
}

// buildImage builds the container image and loads it into the cluster
// runtime so workloads can pull it without a registry.
func (d *Deployer) buildImage(ctx context.Context) error {
	appDir := d.cfg.ResolvePath(d.cfg.Project.AppDir)
	if _, err := os.Stat(filepath.Join(appDir, "Dockerfile")); err != nil {
		return fmt.Errorf("Dockerfile not found in %s: %w", appDir, err)
	}

	ref := d.cfg.Image.Ref()

	slog.Info("building image", "image", ref)
	build := command.Command{
		Program: "docker",
		Args:    []string{"build", "-t", ref, "."},
		Dir:     appDir,
		Timeout: d.cfg.Deploy.BuildTimeout.Std(),
	}
	if out := d.exec.Run(ctx, build); !out.Ok {
		return fmt.Errorf("docker build: %s", out.LastErr)
	}

	slog.Info("loading image into cluster", "image", ref)
	load := command.Command{
		Program: d.cfg.Cluster.Binary,
		Args:    []string{"image", "load", ref},
		Timeout: d.cfg.Deploy.LoadTimeout.Std(),
	}
	if out := d.exec.Run(ctx, load); !out.Ok {
		return fmt.Errorf("image load: %s", out.LastErr)
	}

	return nil
}

func requireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
