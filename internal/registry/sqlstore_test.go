package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
		want    string
	}{
		{
			name:    "sqlite unchanged",
			dialect: DialectSQLite,
			query:   `SELECT quantity FROM balances WHERE owner_address = ? AND token_id = ?`,
			want:    `SELECT quantity FROM balances WHERE owner_address = ? AND token_id = ?`,
		},
		{
			name:    "postgres numbered",
			dialect: DialectPostgres,
			query:   `SELECT quantity FROM balances WHERE owner_address = ? AND token_id = ?`,
			want:    `SELECT quantity FROM balances WHERE owner_address = $1 AND token_id = $2`,
		},
		{
			name:    "postgres many",
			dialect: DialectPostgres,
			query:   `INSERT INTO cards (token_id, element, power, defense, special, rarity, image_url, supply) VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
			want:    `INSERT INTO cards (token_id, element, power, defense, special, rarity, image_url, supply) VALUES ($1, $2, $3, $4, $5, $6, $7, 0)`,
		},
		{
			name:    "postgres no placeholders",
			dialect: DialectPostgres,
			query:   `SELECT next_token_id FROM ledger_meta WHERE id = 1`,
			want:    `SELECT next_token_id FROM ledger_meta WHERE id = 1`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SQLStore{dialect: tt.dialect}
			assert.Equal(t, tt.want, s.rebind(tt.query))
		})
	}
}

func TestViewIsSnapshot(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		_, err := r.Mint(ctx, alice, water())
		require.NoError(t, err)

		done := make(chan error, 1)
		err = store.View(ctx, func(tx ReadTx) error {
			before, err := tx.CardCount()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), before)

			// 视图打开期间的提交对本视图不可见
			go func() {
				_, err := r.Mint(ctx, alice, water())
				done <- err
			}()
			time.Sleep(50 * time.Millisecond)

			after, err := tx.CardCount()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), after)

			owned, err := tx.OwnedTokens(alice)
			require.NoError(t, err)
			assert.Equal(t, []uint64{0}, owned)

			balance, err := tx.Balance(alice, 1)
			require.NoError(t, err)
			assert.Zero(t, balance)
			return nil
		})
		require.NoError(t, err)
		require.NoError(t, <-done)

		owned, err := r.GetTokensByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1}, owned)
	})
}

func TestClaimStarterPackAcrossStores(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")

	// 多个进程内实例共享同一个数据库文件，只能依赖数据库层的串行化
	const instances = 4
	registries := make([]*Registry, instances)
	for i := range registries {
		conn, err := db.OpenSQLite(ctx, path)
		require.NoError(t, err)
		store, err := NewSQLStore(ctx, conn, DialectSQLite)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		registries[i] = New(store)
	}

	const workers = 32
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		rejected  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(r *Registry) {
			defer wg.Done()
			_, err := r.ClaimStarterPack(ctx, bob)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrAlreadyClaimed):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(registries[i%instances])
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, rejected)

	for _, r := range registries {
		owned, err := r.GetTokensByOwner(ctx, bob)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2}, owned)
	}
}
