package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"phi.ai/agent-console/internal/chain"
	"phi.ai/agent-console/internal/phiapi"
)

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <predictionId>",
		Short: "Read a published prediction from the Neo registry contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			record, err := a.Chain.GetPrediction(ctx, args[0])
			if errors.Is(err, chain.ErrNotFound) {
				fmt.Println(yellow("No on-chain record for " + args[0]))
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Println(green("✓ Verified on Neo N3"))
			rows := [][2]string{
				{"user", record.User},
				{"event", record.EventID},
				{"probability", record.Probability},
				{"confidence", record.Confidence},
				{"risk tier", record.RiskTier},
				{"seed", record.Seed},
				{"neofs cid", record.NeofsCID},
				{"timestamp", record.Timestamp},
				{"agent", record.AgentVersion},
				{"profile hash", record.ProfileHash},
			}
			for _, row := range rows {
				fmt.Printf("  %-13s %s\n", cyan(row[0]+":"), row[1])
			}
			return nil
		},
	}
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the prediction backend is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Phi.Health(ctx)
			if err != nil {
				return err
			}
			fmt.Println(green("backend ok: ") + status)
			fmt.Println(gray("speech: " + a.Speech.Backend()))
			return nil
		},
	}
}

func newPredictionsCommand(opts *rootOptions) *cobra.Command {
	var eventID string
	cmd := &cobra.Command{
		Use:   "predictions",
		Short: "List past predictions for the user, or for an event with --event",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var predictions []phiapi.Prediction
			if eventID != "" {
				predictions, err = a.Phi.GetPredictionsByEvent(ctx, eventID)
			} else {
				predictions, err = a.Phi.GetPredictionsForUser(ctx, a.Config.DefaultUserID)
			}
			if err != nil {
				return err
			}
			if len(predictions) == 0 {
				fmt.Println(gray("No predictions yet."))
				return nil
			}
			for _, p := range predictions {
				fmt.Printf("%s  %-14s up=%.2f conf=%.2f risk=%s\n",
					gray(p.CreatedAt), p.EventID, p.ProbabilityUp, p.Confidence, p.RiskTier)
				if p.TxHash != nil {
					fmt.Println(gray("    tx " + *p.TxHash))
				}
				if len(p.ExplanationBullets) > 0 {
					fmt.Println(gray("    " + strings.Join(p.ExplanationBullets, "; ")))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&eventID, "event", "", "list predictions for this event id")
	return cmd
}
