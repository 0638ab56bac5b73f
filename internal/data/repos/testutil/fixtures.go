package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/journeys-backend/internal/domain"
)

// SeedJourney creates an active journey with one step per name, placed at
// step_order 1..n.
func SeedJourney(tb testing.TB, ctx context.Context, tx *gorm.DB, stepNames ...string) (*types.Journey, []*types.Step) {
	tb.Helper()
	j := &types.Journey{
		ID:          uuid.New(),
		Name:        "Parcours",
		NameEn:      "Tour",
		Description: "Une balade",
		IsActive:    true,
	}
	if err := tx.WithContext(ctx).Create(j).Error; err != nil {
		tb.Fatalf("seed journey: %v", err)
	}
	steps := make([]*types.Step, 0, len(stepNames))
	for i, name := range stepNames {
		s := SeedStep(tb, ctx, tx, name, 10*(i+1))
		SeedPlacement(tb, ctx, tx, j.ID, s.ID, i+1)
		steps = append(steps, s)
	}
	return j, steps
}

func SeedStep(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, points int) *types.Step {
	tb.Helper()
	s := &types.Step{
		ID:                     uuid.New(),
		Name:                   name,
		Latitude:               48.85,
		Longitude:              2.35,
		PointsAwarded:          points,
		ValidationRadiusMeters: 50,
		Images:                 datatypes.JSON([]byte(`["a.jpg"]`)),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed step: %v", err)
	}
	return s
}

func SeedPlacement(tb testing.TB, ctx context.Context, tx *gorm.DB, journeyID, stepID uuid.UUID, order int) *types.JourneyStep {
	tb.Helper()
	js := &types.JourneyStep{
		ID:        uuid.New(),
		JourneyID: journeyID,
		StepID:    stepID,
		StepOrder: order,
	}
	if err := tx.WithContext(ctx).Create(js).Error; err != nil {
		tb.Fatalf("seed placement: %v", err)
	}
	return js
}

func SeedCompletion(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, journeyID, stepID uuid.UUID, points int) *types.StepCompletion {
	tb.Helper()
	c := &types.StepCompletion{
		ID:           uuid.New(),
		UserID:       userID,
		JourneyID:    journeyID,
		StepID:       stepID,
		PointsEarned: points,
		CompletedAt:  time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed completion: %v", err)
	}
	return c
}

// SeedProgress creates a pointer whose quiz_responses list the given indices.
func SeedProgress(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, journeyID uuid.UUID, currentOrder int, responseIdx ...int) *types.UserJourneyProgress {
	tb.Helper()
	entries := make([]map[string]any, 0, len(responseIdx))
	for _, idx := range responseIdx {
		entries = append(entries, map[string]any{"stepIndex": idx, "answer": "x"})
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		tb.Fatalf("marshal responses: %v", err)
	}
	p := &types.UserJourneyProgress{
		ID:               uuid.New(),
		UserID:           userID,
		JourneyID:        journeyID,
		CurrentStepOrder: currentOrder,
		QuizResponses:    datatypes.JSON(raw),
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed progress: %v", err)
	}
	return p
}

func SeedProfile(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, points int) *types.Profile {
	tb.Helper()
	p := &types.Profile{ID: userID, TotalPoints: points}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}
