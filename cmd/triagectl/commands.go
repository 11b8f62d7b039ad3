package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/triage-api/config"
	"github.com/jwalitptl/triage-api/internal/knowledge"
	"github.com/jwalitptl/triage-api/internal/model"
	"github.com/jwalitptl/triage-api/internal/service/diagnosis"
	"github.com/jwalitptl/triage-api/internal/service/guideline"
	"github.com/jwalitptl/triage-api/pkg/embedding"
	"github.com/jwalitptl/triage-api/pkg/logger"
	"github.com/jwalitptl/triage-api/pkg/messaging"
	"github.com/jwalitptl/triage-api/pkg/messaging/redis"
)

func loadKnowledge(cmd *cobra.Command) (*knowledge.Base, error) {
	dir, _ := cmd.Flags().GetString("knowledge-dir")
	return knowledge.LoadDir(dir)
}

// newCoordinator builds the rule-based pipeline with no persistence and no
// similarity matching.
func newCoordinator(ctx context.Context, cmd *cobra.Command) (*diagnosis.Coordinator, error) {
	kb, err := loadKnowledge(cmd)
	if err != nil {
		return nil, err
	}
	c := diagnosis.NewCoordinator(
		diagnosis.NewStages(kb, embedding.NullProvider{}, logger.Nop()),
		diagnosis.WithGuidelines(guideline.NewService(kb)),
	)
	if err := c.Initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func readInput(cmd *cobra.Command) (*model.SymptomInput, error) {
	path, _ := cmd.Flags().GetString("file")

	var r io.Reader = cmd.InOrStdin()
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	var in model.SymptomInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to decode input: %w", err)
	}
	return &in, nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty, _ := cmd.Flags().GetBool("pretty"); pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

func diagnoseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diagnose",
		Short: "Run the full pipeline on a symptom input and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd)
			if err != nil {
				return err
			}
			c, err := newCoordinator(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			result, err := c.Diagnose(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().StringP("file", "f", "", "Symptom input JSON file (stdin when empty or -)")
	cmd.Flags().Bool("pretty", false, "Indent JSON output")
	return cmd
}

func urgencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "urgency",
		Short: "Run the quick urgency assessment on a symptom input",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd)
			if err != nil {
				return err
			}
			c, err := newCoordinator(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			assessment, err := c.AssessUrgency(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeJSON(cmd, assessment)
		},
	}
	cmd.Flags().StringP("file", "f", "", "Symptom input JSON file (stdin when empty or -)")
	cmd.Flags().Bool("pretty", false, "Indent JSON output")
	return cmd
}

func knowledgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect the knowledge tables",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledge(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d conditions, %d emergency patterns, %d guidelines\n",
				len(kb.Conditions()), len(kb.Patterns), len(kb.Guidelines))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "conditions",
		Short: "List catalogued conditions",
		RunE: func(cmd *cobra.Command, args []string) error {
			kb, err := loadKnowledge(cmd)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tICD\tSEVERITY\tTREATMENTS")
			for _, c := range kb.Conditions() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.ID, c.ICDCode, c.Severity, len(kb.Treatments(c.ID)))
			}
			return w.Flush()
		},
	})
	return cmd
}

func eventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect published consultation events",
	}

	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print events published by the outbox worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			eventType, _ := cmd.Flags().GetString("type")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			broker, err := redis.NewRedisBroker(cmd.Context(), cfg.Redis.ToBrokerConfig(), logger.Nop())
			if err != nil {
				return err
			}
			defer broker.Close()

			return tailEvents(cmd.Context(), broker, messaging.Channel(cfg.Redis.ChannelPrefix, eventType), cmd.OutOrStdout())
		},
	}
	tail.Flags().String("type", model.EventEmergencyDetected, "Event type to follow")
	cmd.AddCommand(tail)
	return cmd
}

// tailEvents copies messages to out until ctx ends or the subscription closes.
func tailEvents(ctx context.Context, broker messaging.Broker, channel string, out io.Writer) error {
	msgs, err := broker.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			fmt.Fprintln(out, string(raw))
		}
	}
}
