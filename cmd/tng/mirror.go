package main

import (
	"context"
	"fmt"
	"io"

	"github.com/gftdcojp/tng-client/internal/archive"
	"github.com/gftdcojp/tng-client/internal/file"
	"github.com/gftdcojp/tng-client/pkg/tng"
	"github.com/spf13/cobra"
)

func (a *app) mirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Manage cutouts mirrored to object storage",
		Long: `Inspect, restore or remove cutouts that downloads copied to the S3
mirror configured under mirror.*. Cutouts are addressed by the subhalo
identity and the filename they were downloaded to.`,
	}
	cmd.AddCommand(a.mirrorGetCmd(), a.mirrorExistsCmd(), a.mirrorRmCmd())
	return cmd
}

// withMirror resolves the mirror key from SIMULATION SNAPSHOT SUBHALO
// FILENAME and hands it to fn together with the open archive.
func (a *app) withMirror(ctx context.Context, args []string, parent bool, fn func(arc *archive.Archive, key string) error) error {
	id, err := tng.IdentityFromPath(args[:3]...)
	if err != nil {
		return err
	}
	arc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer arc.Close()
	if arc.Mirror == nil {
		return fmt.Errorf("mirror is not enabled in %s", a.configPath)
	}
	return fn(arc, tng.MirrorKey(id, tng.CutoutOptions{GrabParent: parent}, args[3]))
}

func (a *app) mirrorGetCmd() *cobra.Command {
	var (
		parent bool
		dir    string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "get SIMULATION SNAPSHOT SUBHALO FILENAME",
		Short: "Restore a mirrored cutout into a local directory",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return a.withMirror(ctx, args, parent, func(arc *archive.Archive, key string) error {
				store, err := file.NewStore(dir, a.logger)
				if err != nil {
					return err
				}
				if !force {
					if ok, err := store.Exists(args[3]); err != nil {
						return err
					} else if ok {
						path, _ := store.Path(args[3])
						return fmt.Errorf("%s exists, use --force to overwrite", path)
					}
				}

				pr, pw := io.Pipe()
				go func() {
					_, err := arc.Mirror.Get(ctx, key, pw)
					pw.CloseWithError(err)
				}()
				path, err := store.Put(ctx, args[3], pr)
				pr.Close()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&parent, "parent", false, "address the parent halo cutout")
	cmd.Flags().StringVar(&dir, "dir", ".", "destination directory")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing local file")
	return cmd
}

func (a *app) mirrorExistsCmd() *cobra.Command {
	var parent bool
	cmd := &cobra.Command{
		Use:   "exists SIMULATION SNAPSHOT SUBHALO FILENAME",
		Short: "Report whether a cutout is mirrored",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMirror(cmd.Context(), args, parent, func(arc *archive.Archive, key string) error {
				ok, err := arc.Mirror.Exists(cmd.Context(), key)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %t\n", arc.Mirror.ObjectKey(key), ok)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&parent, "parent", false, "address the parent halo cutout")
	return cmd
}

func (a *app) mirrorRmCmd() *cobra.Command {
	var parent bool
	cmd := &cobra.Command{
		Use:   "rm SIMULATION SNAPSHOT SUBHALO FILENAME",
		Short: "Remove a mirrored cutout",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMirror(cmd.Context(), args, parent, func(arc *archive.Archive, key string) error {
				if err := arc.Mirror.Delete(cmd.Context(), key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", arc.Mirror.ObjectKey(key))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&parent, "parent", false, "address the parent halo cutout")
	return cmd
}
