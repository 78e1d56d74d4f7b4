package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finetrail/internal/amqp"
	"finetrail/internal/core"
	"finetrail/internal/ledger/memory"
	"finetrail/internal/log"
	"finetrail/internal/services"
	sheetsmem "finetrail/internal/sheets/memory"
)

type fixture struct {
	svc    *services.FinanceService
	mirror *sheetsmem.Mirror
	worker *MirrorWorker
}

func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()
	store := memory.New()
	svc := services.NewFinanceService(store, nil, log.Discard(), services.Options{CacheTTL: time.Minute})
	mirror := sheetsmem.New()
	return fixture{svc: svc, mirror: mirror, worker: NewMirrorWorker(svc, store, mirror, cfg, log.Discard())}
}

func (f fixture) wallet(t *testing.T, user, initial string) core.Wallet {
	t.Helper()
	w, err := f.svc.CreateWallet(context.Background(), user, core.Wallet{
		Name: "Cash", Type: core.Cash, InitialAmount: decimal.RequireFromString(initial),
	})
	require.NoError(t, err)
	return w
}

func TestHandleEventMirrorsUser(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()
	w := f.wallet(t, "alice", "100")

	ev := amqp.NewEvent(amqp.OpCreated, "wallet", "alice", w.ID)
	require.NoError(t, f.worker.HandleEvent(ctx, ev))

	sheet, ok := f.mirror.Sheet("alice")
	require.True(t, ok)
	assert.Equal(t, []any{"Total balance", "100.00"}, sheet.Summary[4])

	_, err := f.svc.CreateTransaction(ctx, "alice", core.Transaction{
		WalletID: w.ID, Type: core.Expense, Amount: decimal.NewFromInt(40), Date: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, f.worker.HandleEvent(ctx, amqp.NewEvent(amqp.OpCreated, "transaction", "alice", "")))

	sheet, _ = f.mirror.Sheet("alice")
	assert.Equal(t, 2, sheet.Writes)
	assert.Len(t, sheet.Transactions, 2)
	assert.Equal(t, []any{"Total balance", "60.00"}, sheet.Summary[4])
}

func TestHandleEventReturnsMirrorError(t *testing.T) {
	f := newFixture(t, Config{})
	f.wallet(t, "alice", "1")
	f.mirror.FailNext(1)

	err := f.worker.HandleEvent(context.Background(), amqp.NewEvent(amqp.OpUpdated, "transaction", "alice", "t"))
	assert.ErrorIs(t, err, sheetsmem.ErrInjected)
}

func TestResyncMirrorsEveryUser(t *testing.T) {
	f := newFixture(t, Config{BatchSize: 2})
	for _, u := range []string{"alice", "bob", "carol"} {
		f.wallet(t, u, "5")
	}
	f.mirror.FailNext(1)

	res, err := f.worker.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ResyncResult{Users: 3, Synced: 2, Failed: 1}, res)
	assert.Equal(t, 2, f.mirror.Users())

	res, err = f.worker.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Synced)
	assert.Equal(t, 3, f.mirror.Users())
}

type failingDirectory struct{}

func (failingDirectory) ListUsers(context.Context) ([]string, error) {
	return nil, errors.New("db gone")
}

func TestResyncListUsersError(t *testing.T) {
	f := newFixture(t, Config{})
	w := NewMirrorWorker(f.svc, failingDirectory{}, f.mirror, Config{}, nil)
	_, err := w.Resync(context.Background())
	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	f := newFixture(t, Config{ResyncInterval: time.Hour})
	f.wallet(t, "alice", "1")
	ctx := context.Background()

	require.NoError(t, f.worker.Start(ctx))
	assert.True(t, f.worker.IsRunning())
	assert.Error(t, f.worker.Start(ctx))

	assert.Eventually(t, func() bool { return f.mirror.Users() == 1 }, time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, f.worker.Stop(stopCtx))
	assert.False(t, f.worker.IsRunning())
	assert.NoError(t, f.worker.Stop(stopCtx))
}

func TestDefaults(t *testing.T) {
	w := NewMirrorWorker(nil, nil, nil, Config{}, nil)
	assert.Equal(t, DefaultConfig(), w.config)
}
