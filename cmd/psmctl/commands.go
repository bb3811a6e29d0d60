package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
)

func newFilesCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List prompt files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			files, err := o.store().ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return nil
		},
	}
}

func newShowCmd(o *options) *cobra.Command {
	var side string
	cmd := &cobra.Command{
		Use:   "show FILE",
		Short: "Print the prompt trees of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sides, err := parseSides(side)
			if err != nil {
				return err
			}
			f, err := o.store().GetPrompts(cmd.Context(), filestore.WithExt(args[0]))
			if err != nil {
				return err
			}
			r := newRenderer(cmd.OutOrStdout())
			for _, s := range sides {
				r.heading(string(s))
				r.tree(*f.Root(s))
			}
			return r.err
		},
	}
	cmd.Flags().StringVar(&side, "side", "", "positive or negative; both when empty")
	return cmd
}

func newCompileCmd(o *options) *cobra.Command {
	var side string
	cmd := &cobra.Command{
		Use:   "compile FILE",
		Short: "Print the compiled prompts of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sides, err := parseSides(side)
			if err != nil {
				return err
			}
			f, err := o.store().GetPrompts(cmd.Context(), filestore.WithExt(args[0]))
			if err != nil {
				return err
			}
			for _, s := range sides {
				out := prompttree.Compile(*f.Root(s), prompttree.DefaultSeparator)
				if len(sides) == 1 {
					fmt.Fprintln(cmd.OutOrStdout(), out)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", s, out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&side, "side", "", "positive or negative; both when empty")
	return cmd
}

func newImportCmd(o *options) *cobra.Command {
	var positive, negative string
	var force bool
	cmd := &cobra.Command{
		Use:   "import NAME",
		Short: "Create a prompt file from comma separated prompt text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store := o.store()
			file := filestore.WithExt(args[0])

			if !force {
				files, err := store.ListFiles(ctx)
				if err != nil {
					return err
				}
				for _, f := range files {
					if f == file {
						return fmt.Errorf("%s already exists, use --force to overwrite", file)
					}
				}
			}

			ids := prompttree.NewIDGenerator()
			doc := prompttree.Forest{
				Positive: prompttree.ParseRaw(positive, ids),
				Negative: prompttree.ParseRaw(negative, ids),
			}
			if err := store.SavePrompts(ctx, file, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d positive, %d negative\n", file, len(doc.Positive), len(doc.Negative))
			return nil
		},
	}
	cmd.Flags().StringVar(&positive, "positive", "", "positive prompt text")
	cmd.Flags().StringVar(&negative, "negative", "", "negative prompt text")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newRemoveCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rm FILE",
		Short: "Delete a prompt file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.store().DeleteFile(cmd.Context(), filestore.WithExt(args[0]))
		},
	}
}

func newConfigCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the manager configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.store().GetConfig(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "save_dir:      %s\n", cfg.SaveDir)
			fmt.Fprintf(cmd.OutOrStdout(), "is_configured: %t\n", cfg.IsConfigured)
			fmt.Fprintf(cmd.OutOrStdout(), "dev_mode:      %t\n", cfg.DevMode)
			return nil
		},
	})

	var saveDir, devMode string
	set := &cobra.Command{
		Use:   "set",
		Short: "Change the save directory or dev mode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if saveDir == "" && devMode == "" {
				return errors.New("nothing to set: pass --save-dir and/or --dev-mode")
			}
			ctx := cmd.Context()
			store := o.store()
			cfg, err := store.GetConfig(ctx)
			if err != nil {
				return err
			}
			if saveDir != "" {
				cfg.SaveDir = saveDir
			}
			if devMode != "" {
				on, err := strconv.ParseBool(devMode)
				if err != nil {
					return fmt.Errorf("--dev-mode: %w", err)
				}
				cfg.DevMode = on
			}
			return store.SetConfig(ctx, cfg.SaveDir, cfg.DevMode)
		},
	}
	set.Flags().StringVar(&saveDir, "save-dir", "", "new save directory")
	set.Flags().StringVar(&devMode, "dev-mode", "", "true or false")
	cmd.AddCommand(set)

	return cmd
}

func parseSides(side string) ([]prompttree.Side, error) {
	if side == "" {
		return []prompttree.Side{prompttree.Positive, prompttree.Negative}, nil
	}
	s := prompttree.Side(side)
	if !s.Valid() {
		return nil, fmt.Errorf("invalid side %q", side)
	}
	return []prompttree.Side{s}, nil
}
