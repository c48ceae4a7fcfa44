package recurrence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tazhate/calkit/internal/adapter"
	"github.com/tazhate/calkit/internal/calstore"
	"github.com/tazhate/calkit/internal/calstore/calstoretest"
	"github.com/tazhate/calkit/internal/domain"
	"github.com/tazhate/calkit/internal/permission"
)

var monday = time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store    *calstoretest.Store
	adapter  *adapter.Adapter
	resolver *Resolver
	grant    permission.Grant
	series   *domain.Record
}

// newFixture creates a weekly series of five occurrences.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := calstoretest.Wrap(calstoretest.NewSQLite(t))
	grant, err := permission.NewGate(store, zap.NewNop()).Require(ctx, domain.KindEvent)
	require.NoError(t, err)

	a := adapter.New(store, zap.NewNop())
	series, err := a.Create(ctx, grant, &domain.NewItem{
		Kind:           domain.KindEvent,
		Title:          "Standup",
		Start:          monday,
		End:            monday.Add(30 * time.Minute),
		RecurrenceRule: "FREQ=WEEKLY;COUNT=5",
	})
	require.NoError(t, err)

	return &fixture{
		store:    store,
		adapter:  a,
		resolver: NewResolver(a, zap.NewNop()),
		grant:    grant,
		series:   series,
	}
}

func (f *fixture) list(t *testing.T) []domain.Record {
	t.Helper()
	recs, err := f.adapter.FetchRange(context.Background(), f.grant, monday.AddDate(0, 0, -1), monday.AddDate(0, 2, 0), "")
	require.NoError(t, err)
	return recs
}

func titles(recs []domain.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Title)
	}
	return out
}

func strPtr(s string) *string { return &s }

func TestEdit_ThisOnly(t *testing.T) {
	f := newFixture(t)
	third := f.list(t)[2]

	got, err := f.resolver.Edit(context.Background(), f.grant, &third, &domain.Diff{Title: strPtr("Retro")}, domain.ScopeThisOnly)
	require.NoError(t, err)
	assert.Equal(t, third.ID, got.ID)
	assert.True(t, got.Detached)

	recs := f.list(t)
	assert.Equal(t, []string{"Standup", "Standup", "Retro", "Standup", "Standup"}, titles(recs))
	assert.Equal(t, f.series.ID, recs[4].SeriesID)
}

func TestEdit_ThisAndFuture(t *testing.T) {
	f := newFixture(t)
	third := f.list(t)[2]

	got, err := f.resolver.Edit(context.Background(), f.grant, &third, &domain.Diff{Title: strPtr("Sync")}, domain.ScopeThisAndFuture)
	require.NoError(t, err)
	assert.NotEqual(t, f.series.ID, got.SeriesID)

	recs := f.list(t)
	require.Len(t, recs, 5)
	assert.Equal(t, []string{"Standup", "Standup", "Sync", "Sync", "Sync"}, titles(recs))
	assert.Equal(t, f.series.ID, recs[1].SeriesID)
	assert.Equal(t, got.SeriesID, recs[2].SeriesID)
}

func TestEdit_All_ShiftsSeries(t *testing.T) {
	f := newFixture(t)
	third := f.list(t)[2]

	start := third.Start.Add(time.Hour)
	_, err := f.resolver.Edit(context.Background(), f.grant, &third, &domain.Diff{
		Title: strPtr("Late standup"),
		Start: &start,
	}, domain.ScopeAll)
	require.NoError(t, err)

	recs := f.list(t)
	require.Len(t, recs, 5)
	for i, r := range recs {
		assert.Equal(t, "Late standup", r.Title)
		want := monday.AddDate(0, 0, 7*i).Add(time.Hour)
		assert.True(t, r.Start.Equal(want), "occurrence %d starts at %s", i, r.Start)
		assert.Equal(t, 30*time.Minute, r.End.Sub(r.Start))
		assert.Equal(t, f.series.ID, r.SeriesID)
	}
}

func TestEdit_AllReachesDetachedOccurrences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.list(t)[1]

	_, err := f.resolver.Edit(ctx, f.grant, &second, &domain.Diff{Location: strPtr("Room 2")}, domain.ScopeThisOnly)
	require.NoError(t, err)

	detached := f.list(t)[1]
	require.True(t, detached.Detached)

	_, err = f.resolver.Edit(ctx, f.grant, &detached, &domain.Diff{Title: strPtr("Renamed")}, domain.ScopeAll)
	require.NoError(t, err)

	recs := f.list(t)
	require.Len(t, recs, 5)
	assert.Equal(t, []string{"Renamed", "Renamed", "Renamed", "Renamed", "Renamed"}, titles(recs))
	assert.Equal(t, "Room 2", recs[1].Location)
	assert.Equal(t, "", recs[0].Location)
}

func TestEdit_SeriesRecordThisOnly(t *testing.T) {
	f := newFixture(t)

	_, err := f.resolver.Edit(context.Background(), f.grant, f.series, &domain.Diff{Title: strPtr("Kickoff")}, domain.ScopeThisOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kickoff", "Standup", "Standup", "Standup", "Standup"}, titles(f.list(t)))
}

func TestEdit_NonRecurringIgnoresScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	single, err := f.adapter.Create(ctx, f.grant, &domain.NewItem{
		Kind:  domain.KindEvent,
		Title: "Dentist",
		Start: monday.Add(3 * time.Hour),
		End:   monday.Add(4 * time.Hour),
	})
	require.NoError(t, err)

	before := f.store.Writes()
	got, err := f.resolver.Edit(ctx, f.grant, single, &domain.Diff{Title: strPtr("Orthodontist")}, domain.ScopeThisAndFuture)
	require.NoError(t, err)
	assert.Equal(t, "Orthodontist", got.Title)
	assert.Equal(t, before+1, f.store.Writes())
}

func TestDelete_Scopes(t *testing.T) {
	tests := []struct {
		scope domain.Scope
		want  int
	}{
		{domain.ScopeThisOnly, 4},
		{domain.ScopeThisAndFuture, 2},
		{domain.ScopeAll, 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.scope), func(t *testing.T) {
			f := newFixture(t)
			third := f.list(t)[2]

			require.NoError(t, f.resolver.Delete(context.Background(), f.grant, &third, tt.scope))
			recs := f.list(t)
			assert.Len(t, recs, tt.want)
			for _, r := range recs {
				assert.NotEqual(t, third.ID, r.ID)
			}
		})
	}
}

func TestDelete_UnsupportedFuture(t *testing.T) {
	f := newFixture(t)
	f.store.Caps = &calstore.Capabilities{}
	third := f.list(t)[2]
	writes := f.store.Writes()

	err := f.resolver.Delete(context.Background(), f.grant, &third, domain.ScopeThisAndFuture)
	require.Error(t, err)
	assert.Equal(t, domain.ErrKindUnsupported, domain.ErrorKind(err))
	assert.Equal(t, writes, f.store.Writes())
	assert.Len(t, f.list(t), 5)

	_, err = f.resolver.Edit(context.Background(), f.grant, &third, &domain.Diff{Title: strPtr("x")}, domain.ScopeThisAndFuture)
	assert.Equal(t, domain.ErrKindUnsupported, domain.ErrorKind(err))
	assert.Equal(t, writes, f.store.Writes())
}

func TestEdit_DetachedThisAndFuture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	third := f.list(t)[2]

	_, err := f.resolver.Edit(ctx, f.grant, &third, &domain.Diff{Title: strPtr("Retro")}, domain.ScopeThisOnly)
	require.NoError(t, err)

	detached := f.list(t)[2]
	require.True(t, detached.Detached)
	writes := f.store.Writes()

	_, err = f.resolver.Edit(ctx, f.grant, &detached, &domain.Diff{Title: strPtr("Sync")}, domain.ScopeThisAndFuture)
	var unsupported *domain.UnsupportedScopeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, domain.ScopeThisAndFuture, unsupported.Scope)
	assert.Equal(t, writes, f.store.Writes())
	assert.Equal(t, []string{"Standup", "Standup", "Retro", "Standup", "Standup"}, titles(f.list(t)))
}

func TestShiftDiff(t *testing.T) {
	occ := &domain.Record{Start: monday.AddDate(0, 0, 14), End: monday.AddDate(0, 0, 14).Add(time.Hour)}
	series := &domain.Record{Start: monday, End: monday.Add(time.Hour)}

	end := occ.End.Add(30 * time.Minute)
	d := shiftDiff(occ, series, &domain.Diff{End: &end})
	assert.Nil(t, d.Start)
	require.NotNil(t, d.End)
	assert.True(t, d.End.Equal(monday.Add(90*time.Minute)))
}
