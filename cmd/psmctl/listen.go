package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	cfnats "github.com/Strob0t/PromptStruct/internal/adapter/nats"
	"github.com/Strob0t/PromptStruct/internal/port/generation"
)

func newListenCmd(o *options) *cobra.Command {
	var natsURL, subject string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print prompts as they are applied",
		Long: `listen subscribes to the NATS subject the psm server publishes
applied prompts on and prints each one until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if natsURL == "" {
				natsURL = o.cfg.NATS.URL
			}
			if subject == "" {
				subject = o.cfg.NATS.Subject
			}
			if natsURL == "" {
				return fmt.Errorf("no NATS server: pass --nats or set NATS_URL")
			}

			ctx := cmd.Context()
			q, err := cfnats.Connect(ctx, natsURL)
			if err != nil {
				return err
			}
			defer func() { _ = q.Close() }()

			out := cmd.OutOrStdout()
			stop, err := q.Subscribe(ctx, subject, func(_ context.Context, _ string, data []byte) error {
				var p generation.Prompt
				if err := json.Unmarshal(data, &p); err != nil {
					return fmt.Errorf("decode prompt: %w", err)
				}
				_, err := fmt.Fprintf(out, "%s\n  positive: %s\n  negative: %s\n", p.File, p.Positive, p.Negative)
				return err
			})
			if err != nil {
				return err
			}
			defer stop()

			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().StringVar(&natsURL, "nats", "", "NATS server URL")
	cmd.Flags().StringVar(&subject, "subject", "", "subject applied prompts are published on")
	return cmd
}
