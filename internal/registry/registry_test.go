package registry

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jacl-coder/ElementalCard-Server/internal/apperr"
	"github.com/jacl-coder/ElementalCard-Server/internal/models"
	"github.com/jacl-coder/ElementalCard-Server/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = models.Address{0x01}
	alice = models.Address{0xa1}
	bob   = models.Address{0xb0}
)

// forEachStore 对内存与SQLite两种存储运行同一组用例
func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		ctx := context.Background()
		conn, err := db.OpenSQLite(ctx, filepath.Join(t.TempDir(), "ledger.db"))
		require.NoError(t, err)
		store, err := NewSQLStore(ctx, conn, DialectSQLite)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		fn(t, store)
	})
}

func water() models.MintInput {
	return models.MintInput{Element: "Water", Power: 60, Defense: 40, Special: "Hydro Pump", Rarity: 4}
}

func TestMintAndGetAttributes(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		id, err := r.Mint(ctx, alice, water())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)

		attrs, err := r.GetCardAttributes(ctx, id)
		require.NoError(t, err)
		want := models.Attributes{Element: "Water", Power: 60, Defense: 40, Special: "Hydro Pump", Rarity: 4}
		if diff := cmp.Diff(want, attrs); diff != "" {
			t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
		}

		balance, err := r.BalanceOf(ctx, alice, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), balance)

		ids, err := r.GetTokensByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0}, ids)

		supply, err := r.SupplyOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), supply)
	})
}

func TestMintIDsAreSequentialAndUnique(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		seen := make(map[uint64]bool)
		for i := 0; i < 10; i++ {
			id, err := r.Mint(ctx, alice, water())
			require.NoError(t, err)
			assert.False(t, seen[id], "id %d returned twice", id)
			assert.Equal(t, uint64(i), id)
			seen[id] = true
		}

		total, err := r.TotalSupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), total)
	})
}

func TestMintValidationConsumesNoID(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		bad := water()
		bad.Power = 150
		_, err := r.Mint(ctx, alice, bad)
		require.True(t, errors.Is(err, apperr.ErrValidation), "expected ErrValidation, got %v", err)

		bad = water()
		bad.Element = ""
		_, err = r.Mint(ctx, alice, bad)
		require.True(t, errors.Is(err, apperr.ErrValidation), "expected ErrValidation, got %v", err)

		id, err := r.Mint(ctx, alice, water())
		require.NoError(t, err)
		assert.Equal(t, uint64(0), id)

		version, err := r.Version(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), version)
	})
}

func TestGetCardAttributesNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		_, err := New(store).GetCardAttributes(context.Background(), 42)
		assert.True(t, errors.Is(err, apperr.ErrNotFound), "expected ErrNotFound, got %v", err)
	})
}

func TestBalanceOfUnknownIsZero(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		balance, err := r.BalanceOf(ctx, bob, 7)
		require.NoError(t, err)
		assert.Zero(t, balance)

		ids, err := r.GetTokensByOwner(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})
}

func TestClaimStarterPackOnce(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		claimed, err := r.HasClaimedStarterPack(ctx, alice)
		require.NoError(t, err)
		assert.False(t, claimed)

		ids, err := r.ClaimStarterPack(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint64{0, 1, 2}, ids)

		claimed, err = r.HasClaimedStarterPack(ctx, alice)
		require.NoError(t, err)
		assert.True(t, claimed)

		owned, err := r.GetTokensByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, ids, owned)

		_, err = r.ClaimStarterPack(ctx, alice)
		assert.True(t, errors.Is(err, apperr.ErrAlreadyClaimed), "expected ErrAlreadyClaimed, got %v", err)

		// 失败的第二次领取不能铸造任何卡牌
		total, err := r.TotalSupply(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), total)

		attrs, err := r.GetCardAttributes(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, models.Element("Fire"), attrs.Element)
	})
}

func TestClaimStarterPackConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		const workers = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			rejected  int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
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
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, rejected)

		owned, err := r.GetTokensByOwner(ctx, bob)
		require.NoError(t, err)
		assert.Len(t, owned, len(DefaultStarterPack()))
	})
}

func TestConcurrentMintsGetDistinctIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		const workers = 20
		ids := make([]uint64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id, err := r.Mint(ctx, alice, water())
				if err != nil {
					t.Errorf("mint: %v", err)
					return
				}
				ids[i] = id
			}(i)
		}
		wg.Wait()

		seen := make(map[uint64]bool)
		for _, id := range ids {
			assert.False(t, seen[id], "duplicate id %d", id)
			seen[id] = true
		}
		owned, err := r.GetTokensByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, owned, workers)
	})
}

func TestMintCopies(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store, WithOwner(owner))

		id, err := r.Mint(ctx, owner, water())
		require.NoError(t, err)

		require.NoError(t, r.MintCopies(ctx, owner, owner, []uint64{id}, []uint64{5}))

		balance, err := r.BalanceOf(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(6), balance)

		supply, err := r.SupplyOf(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(6), supply)

		err = r.MintCopies(ctx, alice, alice, []uint64{id}, []uint64{1})
		assert.True(t, errors.Is(err, apperr.ErrForbidden), "expected ErrForbidden, got %v", err)

		err = r.MintCopies(ctx, owner, alice, []uint64{id, 99}, []uint64{1, 1})
		assert.True(t, errors.Is(err, apperr.ErrNotFound), "expected ErrNotFound, got %v", err)

		// 整个批次回滚
		balance, err = r.BalanceOf(ctx, alice, id)
		require.NoError(t, err)
		assert.Zero(t, balance)

		err = r.MintCopies(ctx, owner, alice, []uint64{id}, []uint64{0})
		assert.True(t, errors.Is(err, apperr.ErrValidation), "expected ErrValidation, got %v", err)
	})
}

func TestTransfer(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store, WithOwner(owner))

		id, err := r.Mint(ctx, owner, water())
		require.NoError(t, err)
		require.NoError(t, r.MintCopies(ctx, owner, alice, []uint64{id}, []uint64{2}))

		require.NoError(t, r.Transfer(ctx, alice, bob, id, 2))

		aliceBalance, err := r.BalanceOf(ctx, alice, id)
		require.NoError(t, err)
		assert.Zero(t, aliceBalance)
		bobBalance, err := r.BalanceOf(ctx, bob, id)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), bobBalance)

		// 持有索引只追加，余额归零后仍保留
		aliceIDs, err := r.GetTokensByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint64{id}, aliceIDs)

		collection, err := r.Collection(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, collection)

		collection, err = r.Collection(ctx, bob)
		require.NoError(t, err)
		require.Len(t, collection, 1)
		assert.Equal(t, uint64(2), collection[0].Balance)

		err = r.Transfer(ctx, alice, bob, id, 1)
		assert.True(t, errors.Is(err, apperr.ErrInsufficientBalance), "expected ErrInsufficientBalance, got %v", err)

		err = r.Transfer(ctx, bob, bob, id, 1)
		assert.True(t, errors.Is(err, apperr.ErrValidation), "expected ErrValidation, got %v", err)

		err = r.Transfer(ctx, bob, alice, 77, 1)
		assert.True(t, errors.Is(err, apperr.ErrNotFound), "expected ErrNotFound, got %v", err)

		// 守恒：余额之和等于发行量
		supply, err := r.SupplyOf(ctx, id)
		require.NoError(t, err)
		ownerBalance, err := r.BalanceOf(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, supply, ownerBalance+aliceBalance+bobBalance)
	})
}

func TestOwnedIndexOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store, WithOwner(owner))

		a, err := r.Mint(ctx, owner, water())
		require.NoError(t, err)
		b, err := r.Mint(ctx, owner, water())
		require.NoError(t, err)

		// alice 先获得 b，再获得 a
		require.NoError(t, r.MintCopies(ctx, owner, alice, []uint64{b, a}, []uint64{1, 1}))
		c, err := r.Mint(ctx, alice, water())
		require.NoError(t, err)

		ids, err := r.GetTokensByOwner(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint64{b, a, c}, ids)
	})
}

func TestObserversReceiveEvents(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		r := New(store)

		var (
			mu     sync.Mutex
			events []Event
		)
		cancel := r.Subscribe(ObserverFunc(func(e Event) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}))

		id, err := r.Mint(ctx, alice, water())
		require.NoError(t, err)
		_, err = r.ClaimStarterPack(ctx, bob)
		require.NoError(t, err)

		// 失败的操作不产生事件
		_, err = r.ClaimStarterPack(ctx, bob)
		require.Error(t, err)

		cancel()
		_, err = r.Mint(ctx, alice, water())
		require.NoError(t, err)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, events, 5)
		assert.Equal(t, EventCardMinted, events[0].Type)
		assert.Equal(t, id, events[0].TokenID)
		assert.Equal(t, alice, events[0].Owner)
		assert.Equal(t, uint64(1), events[0].Version)
		assert.Equal(t, EventStarterPackClaimed, events[4].Type)
		assert.Equal(t, []uint64{1, 2, 3}, events[4].TokenIDs)
		assert.Equal(t, uint64(2), events[4].Version)
	})
}

func TestReadsDuringUpdateSeeCommittedState(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := New(store)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- store.Update(ctx, func(tx Tx) error {
			if _, err := tx.InsertCard(models.Attributes{Element: "Fire", Special: "Ember", Rarity: 1}); err != nil {
				return err
			}
			close(entered)
			<-release
			return errors.New("abort")
		})
	}()

	<-entered
	// 事务进行中读操作不阻塞，也看不到未提交的卡牌
	total, err := r.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
	close(release)
	require.Error(t, <-done)

	total, err = r.TotalSupply(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)
}
