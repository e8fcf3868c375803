package main

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"lottied/internal/manager"
	"lottied/internal/registry"
	"lottied/pkg/types"
)

func newFetchCmd(c *cli) *cobra.Command {
	var concurrency int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:     "fetch URL...",
		Short:   "Download animations into the resource cache",
		Example: "  lottied fetch https://example.com/a.json https://example.com/b.json",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := manager.NewWithConfig(managerConfig(c.cfg, c.log))
			if err != nil {
				return err
			}
			defer mgr.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			res, err := mgr.Prefetch(ctx, types.FetchRequest{URLs: args, Concurrency: concurrency})
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range res {
				if r.Error != "" {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %s\n", r.URL, r.Error)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ok   %s -> %s\n", r.URL, r.Path)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fetches failed", failed, len(res))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Parallel downloads")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "Overall deadline")
	return cmd
}

func newFrameCmd(c *cli) *cobra.Command {
	var (
		frame         int
		out           string
		width, height int
		asGIF         bool
		end, step     int
	)
	cmd := &cobra.Command{
		Use:     "frame SOURCE",
		Short:   "Render one frame of a file or URL to PNG, or a frame range to GIF",
		Example: "  lottied frame confetti.json --frame 12 --out confetti-12.png\n  lottied frame confetti.json --gif --step 2 --out confetti.gif",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := manager.NewWithConfig(managerConfig(c.cfg, c.log))
			if err != nil {
				return err
			}
			defer mgr.Close()
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			req := types.LoadRequest{Width: width, Height: height, DecodeSingleFrame: true}
			if isURL(args[0]) {
				req.URL = args[0]
			} else {
				req.File = args[0]
			}
			st, err := mgr.Load(ctx, req)
			if err != nil {
				return err
			}
			if asGIF {
				return writeGIF(ctx, cmd, mgr, st, types.ExportRequest{Start: frame, End: end, Step: step}, out)
			}
			buf, err := mgr.Frame(ctx, st.ID, frame)
			if err != nil {
				return err
			}
			if out == "" {
				out = fmt.Sprintf("frame-%d.png", frame)
			}
			fh, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := png.Encode(fh, buf.ToImage()); err != nil {
				_ = fh.Close()
				return err
			}
			if err := fh.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, frame %d of %d)\n", out, st.Width, st.Height, frame, st.TotalFrames)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&frame, "frame", 0, "Frame number")
	fl.StringVarP(&out, "out", "o", "", "Output file (defaults frame-N.png)")
	fl.IntVar(&width, "width", 0, "Render width (0 = configured default)")
	fl.IntVar(&height, "height", 0, "Render height (0 = configured default)")
	fl.BoolVar(&asGIF, "gif", false, "Export frames --frame..--end as an animated GIF")
	fl.IntVar(&end, "end", 0, "Last GIF frame (0 = final frame)")
	fl.IntVar(&step, "step", 1, "GIF frame step")
	return cmd
}

func writeGIF(ctx context.Context, cmd *cobra.Command, mgr *manager.Manager, st types.AnimationStatus, req types.ExportRequest, out string) error {
	if out == "" {
		out = "animation.gif"
	}
	fh, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := mgr.ExportGIF(ctx, st.ID, req, fh); err != nil {
		_ = fh.Close()
		_ = os.Remove(out)
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, from a %d-frame animation at %.0f fps)\n", out, st.Width, st.Height, st.TotalFrames, st.FrameRate)
	return nil
}

func newCacheCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the resource cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("cache requires a subcommand: clear")
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete cached downloads and unpacked archives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := manager.NewWithConfig(managerConfig(c.cfg, c.log))
			if err != nil {
				return err
			}
			defer mgr.Close()
			if err := mgr.ClearCache(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
	cmd.AddCommand(clearCmd)
	return cmd
}

func newLibraryCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:     "library [DIR]",
		Short:   "List animations in a library directory",
		Example: "  lottied library ~/lottie",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.cfg.LibraryDir
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return fmt.Errorf("library directory required (argument or library_dir in config)")
			}
			entries, err := registry.LoadDir(dir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tFORMAT\tSIZE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", e.ID, e.Format, e.Size)
			}
			return tw.Flush()
		},
	}
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
