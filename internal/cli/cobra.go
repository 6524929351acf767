package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"photorename/internal/config"
	"photorename/internal/pipeline"

	"github.com/spf13/cobra"
)

// renameOptions are the flags shared by rename and watch.
type renameOptions struct {
	directory   string
	simonSez    bool
	avoid       bool
	mapFile     string
	delimiter   string
	strict      bool
	reader      string
	suffixOrder string
}

// Execute runs the command line in args against the Env built by factory.
// The Env is closed before Execute returns, even on error.
func Execute(ctx context.Context, cfg *config.Config, log *slog.Logger, factory EnvFactory, args []string) error {
	root := newRoot(cfg, log, factory)
	defer root.close()
	cmd := newRootCmd(root)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// newRootCmd creates the root Cobra command. Running it without a
// subcommand is the same as "rename".
func newRootCmd(root *Root) *cobra.Command {
	opts := &renameOptions{}
	rootCmd := &cobra.Command{
		Use:   "photorename",
		Short: "Rename photos after the time they were taken",
		Long: `photorename renames the JPEG, PNG, TIFF and RAW files in a directory to
YYYYMMDD_HHMMSS.ext using the capture time in their EXIF or XMP metadata.
Nothing is renamed unless --simon-sez is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsEnv(cmd) {
				return nil
			}
			return root.prepare(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.runRename(cmd.Context(), opts)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&root.verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().StringVar(&root.journal, "journal", "", "record runs in this SQLite journal (overrides config)")
	bindRenameFlags(rootCmd, opts, root.cfg)

	rootCmd.AddCommand(newRenameCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newSetDatetimeCmd(root))
	rootCmd.AddCommand(newShiftDatetimeCmd(root))
	rootCmd.AddCommand(newCopyMetadataCmd(root))
	rootCmd.AddCommand(newHistoryCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// skipsEnv reports commands that never touch the pipeline.
func skipsEnv(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["env"] == "none" {
			return true
		}
	}
	return false
}

func bindRenameFlags(cmd *cobra.Command, opts *renameOptions, cfg *config.Config) {
	cmd.Flags().StringVarP(&opts.directory, "directory", "d", "", "directory to rename in (default: current directory)")
	cmd.Flags().BoolVarP(&opts.simonSez, "simon-sez", "s", false, "really rename; without it this is a dry run")
	cmd.Flags().BoolVarP(&opts.avoid, "avoid-collisions", "a", cfg.Rename.AvoidCollisions, "append -N to names that are already taken")
	cmd.Flags().StringVarP(&opts.mapFile, "mapfile", "m", "", "rename by prefix map instead of metadata; its directory is the work directory")
	cmd.Flags().StringVar(&opts.delimiter, "delimiter", cfg.Rename.Delimiter, "map file field separator")
	cmd.Flags().BoolVar(&opts.strict, "strict", cfg.Rename.Strict, "skip files that carry no metadata")
	cmd.Flags().StringVar(&opts.reader, "reader", cfg.Rename.Reader, "metadata reader (native|exiftool|magick)")
	cmd.Flags().StringVar(&opts.suffixOrder, "suffix-order", cfg.Rename.SuffixOrder, "ordering of -N suffixes (lexical|natural)")
	cmd.MarkFlagsMutuallyExclusive("mapfile", "directory")
	cmd.MarkFlagsMutuallyExclusive("mapfile", "avoid-collisions")
}

func newRenameCmd(root *Root) *cobra.Command {
	opts := &renameOptions{}
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Rename images in a directory from their capture time",
		Long: `Read each image's capture time and rename it to YYYYMMDD_HHMMSS.ext.
Files without a usable timestamp keep their name with a lower-case extension.
With --mapfile, names come from a delimited source/destination prefix map.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.runRename(cmd.Context(), opts)
		},
	}
	bindRenameFlags(cmd, opts, root.cfg)
	return cmd
}

func (r *Root) renameJob(opts *renameOptions) (pipeline.Job, error) {
	job := pipeline.Job{
		ID:   newID(),
		Type: pipeline.JobRename,
		Options: map[string]any{
			"simonSez":        opts.simonSez,
			"avoidCollisions": opts.avoid,
			"strict":          opts.strict,
			"reader":          opts.reader,
			"delimiter":       opts.delimiter,
			"suffixOrder":     opts.suffixOrder,
			"maxAttempts":     r.cfg.Rename.MaxAttempts,
		},
	}
	if opts.mapFile != "" {
		abs, err := filepath.Abs(opts.mapFile)
		if err != nil {
			return job, err
		}
		job.MapFile = abs
		job.Dir = filepath.Dir(abs)
		return job, nil
	}
	dir, err := r.workdir(opts.directory)
	if err != nil {
		return job, err
	}
	job.Dir = dir
	return job, nil
}

func (r *Root) runRename(ctx context.Context, opts *renameOptions) error {
	job, err := r.renameJob(opts)
	if err != nil {
		return err
	}
	res, err := r.run(ctx, job)
	if err != nil {
		return err
	}
	r.log.Info("rename finished", "renamed", res.Meta["renamed"], "collisions", res.Meta["collisions"], "failed", res.Meta["failed"], "dry_run", res.Meta["dry_run"])
	return nil
}

func newWatchCmd(root *Root) *cobra.Command {
	opts := &renameOptions{}
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rename new images as they arrive in a directory",
		Long: `Run a rename batch now and again whenever images are created in the
directory, once it has been quiet for the debounce period. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.mapFile != "" {
				return fmt.Errorf("--mapfile cannot be used with watch")
			}
			return root.runWatch(cmd.Context(), opts, debounce)
		},
	}
	bindRenameFlags(cmd, opts, root.cfg)
	cmd.Flags().DurationVar(&debounce, "debounce", time.Duration(root.cfg.Watch.Debounce), "quiet period before a batch runs")
	return cmd
}

func (r *Root) runWatch(ctx context.Context, opts *renameOptions, debounce time.Duration) error {
	dir, err := r.workdir(opts.directory)
	if err != nil {
		return err
	}
	opts.directory = dir

	w, err := r.watchFn(dir, r.types, debounce, r.log)
	if err != nil {
		return err
	}
	defer w.Close()

	batch := func(ctx context.Context) error {
		job, err := r.renameJob(opts)
		if err != nil {
			return err
		}
		_, err = r.run(ctx, job)
		return err
	}
	if err := batch(ctx); err != nil {
		return err
	}
	return w.Run(ctx, batch)
}

func newSetDatetimeCmd(root *Root) *cobra.Command {
	var (
		directory string
		datetime  string
		interval  int
		simonSez  bool
	)
	cmd := &cobra.Command{
		Use:   "set-datetime",
		Short: "Give images consecutive capture times",
		Long: `Assign --datetime to the first image (by name), --datetime + interval to
the second, and so on. Writes EXIF and XMP dates through exiftool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := root.workdir(directory)
			if err != nil {
				return err
			}
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}
			_, err = root.run(cmd.Context(), pipeline.Job{
				ID:   newID(),
				Type: pipeline.JobSetDatetime,
				Dir:  dir,
				Options: map[string]any{
					"datetime": datetime,
					"interval": interval,
					"simonSez": simonSez,
				},
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&directory, "directory", "d", "", "directory to process (default: current directory)")
	cmd.Flags().StringVarP(&datetime, "datetime", "t", "", "initial datetime, YYYY-MM-DD HH:MM:SS")
	cmd.Flags().IntVarP(&interval, "interval", "i", 1, "seconds between successive images")
	cmd.Flags().BoolVarP(&simonSez, "simon-sez", "s", false, "really write; without it this is a dry run")
	_ = cmd.MarkFlagRequired("datetime")
	return cmd
}

func newShiftDatetimeCmd(root *Root) *cobra.Command {
	var (
		directory string
		delta     int
		reader    string
		simonSez  bool
	)
	cmd := &cobra.Command{
		Use:   "shift-datetime",
		Short: "Move every image's capture time by a fixed number of seconds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := root.workdir(directory)
			if err != nil {
				return err
			}
			_, err = root.run(cmd.Context(), pipeline.Job{
				ID:   newID(),
				Type: pipeline.JobShiftDatetime,
				Dir:  dir,
				Options: map[string]any{
					"delta":    delta,
					"reader":   reader,
					"simonSez": simonSez,
				},
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&directory, "directory", "d", "", "directory to process (default: current directory)")
	cmd.Flags().IntVar(&delta, "delta", 0, "seconds to add (negative to subtract)")
	cmd.Flags().StringVar(&reader, "reader", root.cfg.Rename.Reader, "metadata reader (native|exiftool|magick)")
	cmd.Flags().BoolVarP(&simonSez, "simon-sez", "s", false, "really write; without it this is a dry run")
	_ = cmd.MarkFlagRequired("delta")
	return cmd
}

func newCopyMetadataCmd(root *Root) *cobra.Command {
	var (
		srcDir    string
		dstDir    string
		mapFile   string
		delimiter string
		simonSez  bool
	)
	cmd := &cobra.Command{
		Use:   "copy-metadata",
		Short: "Copy EXIF, XMP and IPTC metadata onto matching images",
		Long: `Copy the metadata of each image in --src-directory onto the images in
--dst-directory that share its name stem. With --mapfile, sources are the
files in the map's directory and each is matched to the destination named by
the map. Writes through exiftool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:   newID(),
				Type: pipeline.JobCopyMetadata,
				Options: map[string]any{
					"simonSez":  simonSez,
					"delimiter": delimiter,
				},
			}
			dst, err := filepath.Abs(dstDir)
			if err != nil {
				return err
			}
			job.Dir = dst
			if mapFile != "" {
				if job.MapFile, err = filepath.Abs(mapFile); err != nil {
					return err
				}
			} else {
				src, err := root.workdir(srcDir)
				if err != nil {
					return err
				}
				job.Options["srcDir"] = src
			}
			res, err := root.run(cmd.Context(), job)
			if err != nil {
				return err
			}
			root.log.Info("copy finished", "copied", res.Meta["copied"], "failed", res.Meta["failed"], "unmatched", res.Meta["unmatched"], "dry_run", res.Meta["dry_run"])
			return nil
		},
	}
	cmd.Flags().StringVarP(&srcDir, "src-directory", "r", "", "copy metadata from files in this directory (default: current directory)")
	cmd.Flags().StringVarP(&dstDir, "dst-directory", "d", "", "copy metadata to matching files in this directory")
	cmd.Flags().StringVarP(&mapFile, "mapfile", "m", "", "match sources to destinations through a prefix map; its directory holds the sources")
	cmd.Flags().StringVar(&delimiter, "delimiter", root.cfg.Rename.Delimiter, "map file field separator")
	cmd.Flags().BoolVarP(&simonSez, "simon-sez", "s", false, "really copy; without it this is a dry run")
	_ = cmd.MarkFlagRequired("dst-directory")
	cmd.MarkFlagsMutuallyExclusive("mapfile", "src-directory")
	return cmd
}

func newHistoryCmd(root *Root) *cobra.Command {
	var (
		limit int
		runID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID != "" {
				return root.showRun(runID)
			}
			return root.showHistory(limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the files handled by one run")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Inspect configuration",
		Annotations: map[string]string{"env": "none"},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.configShow()
		},
	})
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"env": "none"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return root.cmdVersion()
		},
	}
}
