//go:build integration

package repositories

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otscribe/report-engine/pkg/apperrors"
	"github.com/otscribe/report-engine/pkg/testhelpers"
)

// suggestionTestContext holds test dependencies for suggestion
// repository tests.
type suggestionTestContext struct {
	t      *testing.T
	testDB *testhelpers.TestDB
	repo   SuggestionRepository
	userID uuid.UUID
}

func setupSuggestionTest(t *testing.T) *suggestionTestContext {
	testDB := testhelpers.GetTestDB(t)
	tc := &suggestionTestContext{
		t:      t,
		testDB: testDB,
		repo:   NewSuggestionRepository(testDB.DB),
		userID: uuid.New(),
	}
	tc.ensureTestUser()
	t.Cleanup(tc.cleanup)
	return tc
}

// ensureTestUser creates an account row for the FK constraint.
func (tc *suggestionTestContext) ensureTestUser() {
	tc.t.Helper()
	_, err := tc.testDB.DB.Exec(context.Background(), `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, '*')
		ON CONFLICT (id) DO NOTHING
	`, tc.userID, tc.userID.String()+"@test.local")
	if err != nil {
		tc.t.Fatalf("failed to ensure test user: %v", err)
	}
}

func (tc *suggestionTestContext) cleanup() {
	tc.t.Helper()
	_, err := tc.testDB.DB.Exec(context.Background(),
		`DELETE FROM users WHERE id = $1`, tc.userID)
	if err != nil {
		tc.t.Fatalf("failed to clean up test user: %v", err)
	}
}

func TestSuggestionRepository_UpsertUsage(t *testing.T) {
	tc := setupSuggestionTest(t)
	ctx := context.Background()

	first, err := tc.repo.UpsertUsage(ctx, tc.userID, "motor", "recommendation", "weekly sessions")
	require.NoError(t, err)
	assert.Equal(t, 1, first.UsageCount)

	second, err := tc.repo.UpsertUsage(ctx, tc.userID, "motor", "recommendation", "weekly sessions")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.UsageCount)
	assert.True(t, second.LastUsed.After(first.LastUsed) || second.LastUsed.Equal(first.LastUsed))
}

func TestSuggestionRepository_ListByField_RespectsThreshold(t *testing.T) {
	tc := setupSuggestionTest(t)
	ctx := context.Background()

	_, err := tc.repo.UpsertUsage(ctx, tc.userID, "motor", "recommendation", "once")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = tc.repo.UpsertUsage(ctx, tc.userID, "motor", "recommendation", "thrice")
		require.NoError(t, err)
	}

	rows, err := tc.repo.ListByField(ctx, tc.userID, "motor", "recommendation", 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "thrice", rows[0].SuggestionText)
}

func TestSuggestionRepository_PinRoundTrip(t *testing.T) {
	tc := setupSuggestionTest(t)
	ctx := context.Background()

	row, err := tc.repo.UpsertUsage(ctx, tc.userID, "motor", "recommendation", "weekly sessions")
	require.NoError(t, err)

	require.NoError(t, tc.repo.SetPinned(ctx, row.ID, tc.userID, true))

	count, err := tc.repo.CountPinned(ctx, tc.userID, "motor", "recommendation")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pinned, err := tc.repo.ListPinned(ctx, tc.userID, "motor", "recommendation", 3)
	require.NoError(t, err)
	require.Len(t, pinned, 1)
	assert.True(t, pinned[0].IsPinned)
}

func TestSuggestionRepository_ForeignUserCannotTouchRow(t *testing.T) {
	tc := setupSuggestionTest(t)
	ctx := context.Background()

	row, err := tc.repo.UpsertUsage(ctx, tc.userID, "motor", "recommendation", "weekly sessions")
	require.NoError(t, err)

	stranger := uuid.New()

	_, err = tc.repo.GetByIDForUser(ctx, row.ID, stranger)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = tc.repo.Delete(ctx, row.ID, stranger)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	err = tc.repo.SetPinned(ctx, row.ID, stranger, true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// Still intact for the owner.
	_, err = tc.repo.GetByIDForUser(ctx, row.ID, tc.userID)
	require.NoError(t, err)
}
