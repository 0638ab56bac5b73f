package journey

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/journeys-backend/internal/data/repos/testutil"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
)

func TestCompletionAndProfileRepos(t *testing.T) {
	conn := testutil.SQLite(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	log := testutil.Logger(t)
	completions := NewCompletionRepo(conn, log)
	profiles := NewProfileRepo(conn, log)

	j1, s1 := testutil.SeedJourney(t, ctx, conn, "A", "B")
	j2, s2 := testutil.SeedJourney(t, ctx, conn, "C")
	userID := uuid.New()

	a := testutil.SeedCompletion(t, ctx, conn, userID, j1.ID, s1[0].ID, 10)
	testutil.SeedCompletion(t, ctx, conn, userID, j1.ID, s1[1].ID, 20)
	testutil.SeedCompletion(t, ctx, conn, userID, j2.ID, s2[0].ID, 5)
	testutil.SeedCompletion(t, ctx, conn, uuid.New(), j1.ID, s1[0].ID, 99)

	rows, err := completions.ListByUserJourney(dbc, userID, j1.ID)
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByUserJourney: err=%v len=%d", err, len(rows))
	}
	rows, err = completions.ListByUserSteps(dbc, userID, []uuid.UUID{s1[1].ID, s2[0].ID})
	if err != nil || len(rows) != 2 {
		t.Fatalf("ListByUserSteps: err=%v len=%d", err, len(rows))
	}
	total, err := completions.SumPointsByUser(dbc, userID)
	if err != nil || total != 35 {
		t.Fatalf("SumPointsByUser: total=%d err=%v", total, err)
	}

	n, err := completions.DeleteByIDs(dbc, []uuid.UUID{a.ID})
	if err != nil || n != 1 {
		t.Fatalf("DeleteByIDs: n=%d err=%v", n, err)
	}
	if total, _ := completions.SumPointsByUser(dbc, userID); total != 25 {
		t.Fatalf("after delete: total=%d", total)
	}

	now := time.Now().UTC()
	if err := profiles.SetTotalPoints(dbc, userID, 25, now); err != nil {
		t.Fatalf("SetTotalPoints create: %v", err)
	}
	if err := profiles.SetTotalPoints(dbc, userID, 30, now.Add(time.Second)); err != nil {
		t.Fatalf("SetTotalPoints update: %v", err)
	}
	p, err := profiles.Get(dbc, userID)
	if err != nil || p == nil || p.TotalPoints != 30 {
		t.Fatalf("profile: %+v err=%v", p, err)
	}
}
