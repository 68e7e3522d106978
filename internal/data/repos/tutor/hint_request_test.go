package tutor

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/labtwin-backend/internal/data/repos/testutil"
	types "github.com/yungbote/labtwin-backend/internal/domain"
)

func TestHintRequestRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewHintRequestRepo(db, testutil.Logger(t))

	s := testutil.SeedStudent(t, ctx, tx)
	a := testutil.SeedActivity(t, ctx, tx, 5)

	if got, err := repo.GetLatest(ctx, tx, s.ID, a.ID); err != nil || got != nil {
		t.Fatalf("GetLatest(empty): got=%v err=%v", got, err)
	}

	testutil.SeedHint(t, ctx, tx, s.ID, a.ID, 1, nil)
	testutil.SeedHint(t, ctx, tx, s.ID, a.ID, 2, nil)
	h4 := testutil.SeedHint(t, ctx, tx, s.ID, a.ID, 4, nil)

	if n, err := repo.CountByStudentAndActivity(ctx, tx, s.ID, a.ID); err != nil || n != 3 {
		t.Fatalf("CountByStudentAndActivity: n=%d err=%v", n, err)
	}
	if got, err := repo.GetLatest(ctx, tx, s.ID, a.ID); err != nil || got == nil || got.ID != h4.ID {
		t.Fatalf("GetLatest: got=%v err=%v", got, err)
	}
	if rows, err := repo.ListByStudentAndActivity(ctx, tx, s.ID, a.ID); err != nil || len(rows) != 3 || rows[0].HintLevel != 1 {
		t.Fatalf("ListByStudentAndActivity: err=%v rows=%d", err, len(rows))
	}
	if got, err := repo.LatestUnpassedAtLevel(ctx, tx, s.ID, a.ID, 4); err != nil || got == nil || got.ID != h4.ID {
		t.Fatalf("LatestUnpassedAtLevel: got=%v err=%v", got, err)
	}
	if ok, err := repo.HasPassedAtLevel(ctx, tx, s.ID, a.ID, 4); err != nil || ok {
		t.Fatalf("HasPassedAtLevel before pass: ok=%v err=%v", ok, err)
	}

	updated, err := repo.RecordComprehension(ctx, tx, h4.ID, "because the loop divides by ten", true)
	if err != nil || updated == nil || !updated.Passed() || updated.ComprehensionAttempts != 1 {
		t.Fatalf("RecordComprehension(pass): got=%+v err=%v", updated, err)
	}
	// A later failing answer must not revoke the pass.
	updated, err = repo.RecordComprehension(ctx, tx, h4.ID, "no idea", false)
	if err != nil || updated == nil || !updated.Passed() || updated.ComprehensionAttempts != 2 {
		t.Fatalf("RecordComprehension(fail after pass): got=%+v err=%v", updated, err)
	}
	if ok, err := repo.HasPassedAtLevel(ctx, tx, s.ID, a.ID, 4); err != nil || !ok {
		t.Fatalf("HasPassedAtLevel after pass: ok=%v err=%v", ok, err)
	}
	if got, err := repo.LatestUnpassedAtLevel(ctx, tx, s.ID, a.ID, 4); err != nil || got != nil {
		t.Fatalf("LatestUnpassedAtLevel after pass: got=%v err=%v", got, err)
	}

	if got, err := repo.RecordComprehension(ctx, tx, uuid.New(), "x", true); err != nil || got != nil {
		t.Fatalf("RecordComprehension(missing): got=%v err=%v", got, err)
	}

	if err := repo.SetHelpful(ctx, tx, h4.ID, true); err != nil {
		t.Fatalf("SetHelpful: %v", err)
	}
	if err := repo.SetHelpful(ctx, tx, h4.ID, true); err != nil {
		t.Fatalf("SetHelpful (repeat): %v", err)
	}
	if err := repo.SetLedToSuccess(ctx, tx, h4.ID, false); err != nil {
		t.Fatalf("SetLedToSuccess: %v", err)
	}
	got, err := repo.GetByID(ctx, tx, h4.ID)
	if err != nil || got == nil || got.WasHelpful == nil || !*got.WasHelpful || got.LedToSuccess == nil || *got.LedToSuccess {
		t.Fatalf("GetByID after feedback: got=%+v err=%v", got, err)
	}
	if err := repo.SetHelpful(ctx, tx, uuid.New(), true); err == nil {
		t.Fatalf("SetHelpful(missing) should fail")
	}

	row := &types.HintRequest{StudentID: s.ID, ActivityID: a.ID, HintLevel: 1, GeneratedHint: "h", Provider: "cloud"}
	if err := repo.Create(ctx, tx, row); err != nil || row.ID == uuid.Nil {
		t.Fatalf("Create: id=%v err=%v", row.ID, err)
	}
}
