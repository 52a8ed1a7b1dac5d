package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/gftdcojp/tng-client/pkg/tng"
	"github.com/spf13/cobra"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withNode opens the archive, resolves the identity in args and hands the
// node to fn.
func (a *app) withNode(ctx context.Context, args []string, fn func(*tng.Client, tng.Node) error) error {
	id, err := tng.IdentityFromPath(args...)
	if err != nil {
		return err
	}
	arc, err := a.open(ctx)
	if err != nil {
		return err
	}
	defer arc.Close()
	node, err := arc.Client.Open(ctx, id)
	if err != nil {
		return err
	}
	return fn(arc.Client, node)
}

func (a *app) getCmd() *cobra.Command {
	var (
		raw    bool
		dir    string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "get SIMULATION [SNAPSHOT [SUBHALO]]",
		Short: "Print a node's metadata",
		Long: `Print the metadata document of a simulation, snapshot or subhalo.

With --raw the node URL is fetched explicitly and the response classified
by content type. Downloadable responses are saved under --dir.`,
		Args: cobra.RangeArgs(1, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseParams(params)
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), args, func(_ *tng.Client, n tng.Node) error {
				out := cmd.OutOrStdout()
				if !raw {
					attrs, err := n.Attributes(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(out, attrs)
				}
				res, err := n.Fetch(cmd.Context(), tng.FetchOptions{Directory: dir, Params: q})
				if err != nil {
					return err
				}
				switch res.Status {
				case tng.StatusMetadata:
					return printJSON(out, res.Attributes)
				case tng.StatusSavedFile:
					fmt.Fprintln(out, res.Path)
					return nil
				default:
					_, err := out.Write(res.Response.Body)
					return err
				}
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "fetch the node URL explicitly, bypassing caches")
	cmd.Flags().StringVar(&dir, "dir", ".", "directory for downloaded files with --raw")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "query parameter key=value, repeatable")
	return cmd
}

func parseParams(kvs []string) (url.Values, error) {
	if len(kvs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q, want key=value", kv)
		}
		q.Add(k, v)
	}
	return q, nil
}

func (a *app) fieldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "field JSONPATH SIMULATION [SNAPSHOT [SUBHALO]]",
		Short: "Evaluate a JSONPath expression against a node's metadata",
		Example: `  tng field '$.cosmology' Illustris-3
  tng field 'supplementary_data.*' Illustris-3 135 1030`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withNode(cmd.Context(), args[1:], func(_ *tng.Client, n tng.Node) error {
				vals, err := n.Field(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), vals)
			})
		},
	}
	return cmd
}

func (a *app) derivedCmd() *cobra.Command {
	var physical bool
	cmd := &cobra.Command{
		Use:   "derived SIMULATION SNAPSHOT SUBHALO",
		Short: "Print a subhalo's unit-tagged derived fields",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withNode(cmd.Context(), args, func(_ *tng.Client, n tng.Node) error {
				sub := n.(*tng.Subhalo)
				d, err := sub.Derived(cmd.Context())
				if err != nil {
					return err
				}
				if physical {
					if d, err = d.ToPhysical(sub.Units()); err != nil {
						return err
					}
				}
				writeDerived(cmd.OutOrStdout(), sub, d)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&physical, "physical", false, "convert comoving quantities to the physical frame")
	return cmd
}

func writeDerived(w io.Writer, sub *tng.Subhalo, d *tng.DerivedFields) {
	fmt.Fprintf(w, "%s z=%g a=%g h=%g\n", sub, sub.Redshift(), sub.ScaleFactor(), sub.Units().LittleH())
	rows := []struct {
		name string
		val  fmt.Stringer
	}{
		{"center_of_mass", d.CenterOfMass},
		{"center", d.Center},
		{"peculiar_velocity", d.PeculiarVelocity},
		{"spin", d.Spin},
		{"velocity_dispersion_3d", d.VelocityDispersion3D},
		{"star_formation_rate", d.StarFormationRate},
		{"mass", d.Mass},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "  %-24s %s\n", r.name, r.val)
	}
}

func (a *app) downloadCmd() *cobra.Command {
	var (
		out    string
		parent bool
		params []string
	)
	cmd := &cobra.Command{
		Use:   "download SIMULATION SNAPSHOT SUBHALO",
		Short: "Download a subhalo cutout",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseParams(params)
			if err != nil {
				return err
			}
			return a.withNode(cmd.Context(), args, func(_ *tng.Client, n tng.Node) error {
				sub := n.(*tng.Subhalo)
				name := out
				if name == "" {
					name = fmt.Sprintf("cutout_%s_%d_%d.hdf5", sub.SimulationName(), sub.SnapshotNumber(), sub.ID())
				}
				path, err := sub.Download(cmd.Context(), name, tng.CutoutOptions{GrabParent: parent, Params: q})
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination file (default cutout_<sim>_<snap>_<id>.hdf5)")
	cmd.Flags().BoolVar(&parent, "parent", false, "download the parent halo cutout instead of the subhalo")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "cutout query parameter key=value, repeatable")
	return cmd
}

func (a *app) visualCmd() *cobra.Command {
	var (
		out  string
		list bool
	)
	cmd := &cobra.Command{
		Use:   "visual KEY SIMULATION [SNAPSHOT [SUBHALO]]",
		Short: "Fetch a node visualisation",
		Long: `Fetch the visualisation named KEY and write it to --output.

With --list KEY is ignored and the available visualisation keys are printed.`,
		Args: cobra.RangeArgs(2, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withNode(cmd.Context(), args[1:], func(_ *tng.Client, n tng.Node) error {
				if list {
					vis, err := n.AvailableVisuals(cmd.Context())
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), vis)
				}
				img, err := n.RenderVisual(cmd.Context(), args[0], tng.RendererFunc(func(_ context.Context, _ string, image []byte) error {
					if out == "" || out == "-" {
						_, err := cmd.OutOrStdout().Write(image)
						return err
					}
					return os.WriteFile(out, image, 0o644)
				}))
				if err != nil {
					return err
				}
				if img == nil {
					return fmt.Errorf("visual %q unavailable for %s", args[0], n)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "destination file, - for stdout")
	cmd.Flags().BoolVar(&list, "list", false, "list the available visualisation keys")
	return cmd
}
