package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MSSkowron/MicroURL/internal/model"
	"github.com/MSSkowron/MicroURL/internal/testutil"
)

const testTTL = 100 * time.Second

type repoFactory func(t *testing.T, clock *testutil.Clock) MicroRepository

// runContract exercises the behaviour every MicroRepository implementation must share.
func runContract(t *testing.T, newRepo repoFactory) {
	ctx := context.Background()

	insert := func(t *testing.T, repo MicroRepository, clock *testutil.Clock, code, destination string, public bool) *model.MicroEntry {
		t.Helper()
		entry := model.NewMicroEntry(code, destination, public, clock.Now(), testTTL)
		require.NoError(t, repo.Insert(ctx, entry))
		return entry
	}

	t.Run("InsertAndLookup", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)

		entry := insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		found, err := repo.Lookup(ctx, "redfoxtail")
		require.NoError(t, err)
		require.Equal(t, entry.Destination, found.Destination)
		require.Equal(t, entry.CreatedAt.Unix(), found.CreatedAt.Unix())
		require.Equal(t, entry.ExpiresAt.Unix(), found.ExpiresAt.Unix())
		require.True(t, found.Public)
		require.Zero(t, found.HitCount)

		code, ok, err := repo.FindByDestination(ctx, "https://example.com/a")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "redfoxtail", code)
	})

	t.Run("LookupMissing", func(t *testing.T) {
		repo := newRepo(t, testutil.NewClock(1000))

		_, err := repo.Lookup(ctx, "nothing")
		require.ErrorIs(t, err, ErrMicroNotFound)

		_, ok, err := repo.FindByDestination(ctx, "https://example.com/none")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("FindByDestinationIsExact", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "Example.com", true)

		_, ok, err := repo.FindByDestination(ctx, "example.com")
		require.NoError(t, err)
		require.False(t, ok)

		_, ok, err = repo.FindByDestination(ctx, "Example.com ")
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("CodeCollision", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		err := repo.Insert(ctx, model.NewMicroEntry("redfoxtail", "https://example.com/b", true, clock.Now(), testTTL))
		require.ErrorIs(t, err, ErrMicroCollision)

		clock.Advance(testTTL + time.Second)
		err = repo.Insert(ctx, model.NewMicroEntry("redfoxtail", "https://example.com/c", true, clock.Now(), testTTL))
		require.ErrorIs(t, err, ErrMicroCollision, "Expired but unswept codes must still collide")
	})

	t.Run("DestinationTaken", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		err := repo.Insert(ctx, model.NewMicroEntry("bluecatnest", "https://example.com/a", true, clock.Now(), testTTL))
		require.ErrorIs(t, err, ErrDestinationTaken)
	})

	t.Run("ExpiredDestinationGetsFreshCode", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		clock.Advance(testTTL + time.Second)

		_, ok, err := repo.FindByDestination(ctx, "https://example.com/a")
		require.NoError(t, err)
		require.False(t, ok, "Expired micros must not be reused")

		insert(t, repo, clock, "bluecatnest", "https://example.com/a", true)

		code, ok, err := repo.FindByDestination(ctx, "https://example.com/a")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "bluecatnest", code)

		deleted, err := repo.DeleteExpired(ctx, clock.Now())
		require.NoError(t, err)
		require.Equal(t, int64(1), deleted)

		code, ok, err = repo.FindByDestination(ctx, "https://example.com/a")
		require.NoError(t, err)
		require.True(t, ok, "Sweeping the old micro must keep the fresh one")
		require.Equal(t, "bluecatnest", code)
	})

	t.Run("ExpiryBoundary", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		data := []struct {
			now     int64
			visible bool
		}{
			{1000 + 99, true},
			{1000 + 100, true},
			{1000 + 101, false},
		}

		for _, d := range data {
			t.Run(fmt.Sprintf("At %d", d.now), func(t *testing.T) {
				clock.Set(d.now)

				_, err := repo.Lookup(ctx, "redfoxtail")
				if d.visible {
					require.NoError(t, err)
					require.NoError(t, repo.IncrementHit(ctx, "redfoxtail"))
				} else {
					require.ErrorIs(t, err, ErrMicroNotFound)
					require.ErrorIs(t, repo.IncrementHit(ctx, "redfoxtail"), ErrMicroNotFound)
				}
			})
		}
	})

	t.Run("IncrementHit", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		for i := 0; i < 3; i++ {
			require.NoError(t, repo.IncrementHit(ctx, "redfoxtail"))
		}

		clock.Advance(time.Second)
		found, err := repo.Lookup(ctx, "redfoxtail")
		require.NoError(t, err)
		require.Equal(t, int64(3), found.HitCount)

		require.ErrorIs(t, repo.IncrementHit(ctx, "missing"), ErrMicroNotFound)
	})

	t.Run("ConcurrentIncrementHit", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)
		insert(t, repo, clock, "redfoxtail", "https://example.com/a", true)

		const n = 50
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				assert.NoError(t, repo.IncrementHit(ctx, "redfoxtail"))
			}()
		}
		wg.Wait()

		top, err := repo.TopByHits(ctx, 1)
		require.NoError(t, err)
		require.Len(t, top, 1)
		require.Equal(t, int64(n), top[0].HitCount)
	})

	t.Run("TopByHits", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)

		hits := map[string]int{"a": 5, "b": 5, "c": 2, "hidden": 50}
		insert(t, repo, clock, "a", "https://a.example", true)
		clock.Advance(time.Second)
		insert(t, repo, clock, "b", "https://b.example", true)
		clock.Advance(time.Second)
		insert(t, repo, clock, "c", "https://c.example", true)
		insert(t, repo, clock, "hidden", "https://hidden.example", false)

		for code, n := range hits {
			for i := 0; i < n; i++ {
				require.NoError(t, repo.IncrementHit(ctx, code))
			}
		}

		top, err := repo.TopByHits(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, codesOf(top))
		require.Equal(t, []int64{5, 5, 2}, []int64{top[0].HitCount, top[1].HitCount, top[2].HitCount})

		top, err = repo.TopByHits(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b", "c"}, codesOf(top), "Private micros must never be ranked")

		top, err = repo.TopByHits(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, codesOf(top))

		top, err = repo.TopByHits(ctx, 0)
		require.NoError(t, err)
		require.Empty(t, top)
	})

	t.Run("MostRecent", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)

		insert(t, repo, clock, "old", "https://old.example", true)
		clock.Advance(time.Second)
		insert(t, repo, clock, "private", "https://private.example", false)
		clock.Advance(time.Second)
		insert(t, repo, clock, "new", "https://new.example", true)

		recent, err := repo.MostRecent(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"new", "old"}, codesOf(recent))

		recent, err = repo.MostRecent(ctx, 1)
		require.NoError(t, err)
		require.Equal(t, []string{"new"}, codesOf(recent))
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		clock := testutil.NewClock(1000)
		repo := newRepo(t, clock)

		insert(t, repo, clock, "first", "https://first.example", true)
		clock.Advance(10 * time.Second)
		insert(t, repo, clock, "second", "https://second.example", true)

		deleted, err := repo.DeleteExpired(ctx, time.Unix(1000+100, 0))
		require.NoError(t, err)
		require.Zero(t, deleted, "An entry expiring exactly now is still live")

		clock.Set(1000 + 101)
		deleted, err = repo.DeleteExpired(ctx, clock.Now())
		require.NoError(t, err)
		require.Equal(t, int64(1), deleted)

		_, err = repo.Lookup(ctx, "first")
		require.ErrorIs(t, err, ErrMicroNotFound)
		_, err = repo.Lookup(ctx, "second")
		require.NoError(t, err)

		require.NoError(t, repo.Insert(ctx, model.NewMicroEntry("first", "https://other.example", true, clock.Now(), testTTL)),
			"A swept code can be registered again")
	})

	t.Run("Ping", func(t *testing.T) {
		repo := newRepo(t, testutil.NewClock(1000))
		require.NoError(t, repo.Ping(ctx))
	})
}

func codesOf(entries []*model.MicroEntry) []string {
	codes := make([]string, len(entries))
	for i, e := range entries {
		codes[i] = e.Code
	}
	return codes
}
