package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/journeys-backend/internal/modules/journey"
)

type reconciler interface {
	DiagnoseInconsistencies(ctx context.Context, userID, journeyID uuid.UUID) (*journey.Diagnostics, error)
	FullSynchronization(ctx context.Context, userID, journeyID uuid.UUID) journey.SyncResult
	CleanupGhostData(ctx context.Context, userID, journeyID uuid.UUID) journey.SyncResult
	ManualRepair(ctx context.Context, userID, journeyID uuid.UUID) journey.SyncResult
}

type lifecycle interface {
	DeleteJourneyCompletely(ctx context.Context, userID, journeyID uuid.UUID) journey.DeleteOutcome
	ResetJourneyForReplay(ctx context.Context, userID, journeyID uuid.UUID) journey.ResetOutcome
}

type backend struct {
	reconciler reconciler
	lifecycle  lifecycle
}

type opener func(ctx context.Context) (backend, func(), error)

// errFailed marks an operation that ran but reported failure. Its result has
// already been printed.
var errFailed = errors.New("operation failed")

type target struct {
	user    string
	journey string
}

func (t target) parse() (uuid.UUID, uuid.UUID, error) {
	userID, err := uuid.Parse(t.user)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --user %q: %w", t.user, err)
	}
	journeyID, err := uuid.Parse(t.journey)
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid --journey %q: %w", t.journey, err)
	}
	return userID, journeyID, nil
}

func newRootCommand(open opener) *cobra.Command {
	t := &target{}
	cmd := &cobra.Command{
		Use:           "journeyctl",
		Short:         "Inspect and repair user journey progress",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&t.user, "user", "", "user id (uuid)")
	cmd.PersistentFlags().StringVar(&t.journey, "journey", "", "journey id (uuid)")
	_ = cmd.MarkPersistentFlagRequired("user")
	_ = cmd.MarkPersistentFlagRequired("journey")

	cmd.AddCommand(
		newOpCommand(open, t, "diagnose", "Report drift between completions and quiz responses", func(ctx context.Context, b backend, u, j uuid.UUID) (any, bool, error) {
			d, err := b.reconciler.DiagnoseInconsistencies(ctx, u, j)
			return d, err == nil, err
		}),
		newOpCommand(open, t, "sync", "Remove ghost completions and rebuild quiz responses", func(ctx context.Context, b backend, u, j uuid.UUID) (any, bool, error) {
			res := b.reconciler.FullSynchronization(ctx, u, j)
			return res, res.Success, nil
		}),
		newOpCommand(open, t, "cleanup", "Remove completions for steps no longer in the journey", func(ctx context.Context, b backend, u, j uuid.UUID) (any, bool, error) {
			res := b.reconciler.CleanupGhostData(ctx, u, j)
			return res, res.Success, nil
		}),
		newOpCommand(open, t, "repair", "Run the repair procedure without diagnosing first", func(ctx context.Context, b backend, u, j uuid.UUID) (any, bool, error) {
			res := b.reconciler.ManualRepair(ctx, u, j)
			return res, res.Success, nil
		}),
		newOpCommand(open, t, "delete", "Delete all of the user's data for the journey", func(ctx context.Context, b backend, u, j uuid.UUID) (any, bool, error) {
			res := b.lifecycle.DeleteJourneyCompletely(ctx, u, j)
			return res, res.Success, nil
		}),
		newOpCommand(open, t, "reset", "Reset the journey so the user can replay it", func(ctx context.Context, b backend, u, j uuid.UUID) (any, bool, error) {
			res := b.lifecycle.ResetJourneyForReplay(ctx, u, j)
			return res, res.Success, nil
		}),
	)
	return cmd
}

type opFunc func(ctx context.Context, b backend, userID, journeyID uuid.UUID) (any, bool, error)

func newOpCommand(open opener, t *target, use, short string, run opFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, journeyID, err := t.parse()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, closeFn, err := open(ctx)
			if err != nil {
				return err
			}
			if closeFn != nil {
				defer closeFn()
			}
			out, ok, err := run(ctx, b, userID, journeyID)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !ok {
				return errFailed
			}
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
