package database

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/campus/pkg/logger"
)

// ErrNoTransaction is returned by AfterCommit when ctx carries no transaction.
var ErrNoTransaction = errors.New("database: no transaction in context")

// CommitHook runs once the outermost transaction has committed. It receives
// the values of the context the transaction was started with, detached from
// its cancellation, and no transaction handle.
type CommitHook func(ctx context.Context)

type txKey struct{}

type txState struct {
	tx *gorm.DB

	mu    sync.Mutex
	hooks []CommitHook
}

func (s *txState) add(hook CommitHook) {
	s.mu.Lock()
	s.hooks = append(s.hooks, hook)
	s.mu.Unlock()
}

func (s *txState) drain() []CommitHook {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.hooks
	s.hooks = nil
	return hooks
}

// WithTransaction runs fn inside a transaction. When ctx already carries one,
// fn joins it and commit hooks wait for the outer transaction. Otherwise a new
// transaction is opened; on success its hooks run in registration order on
// the calling goroutine after commit. A returned error, a failed commit or a
// panic rolls back and discards the hooks.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx, state.tx)
	}

	state := &txState{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		state.tx = tx
		return fn(context.WithValue(ctx, txKey{}, state), tx)
	})
	if err != nil {
		state.drain()
		return err
	}

	detached := context.WithoutCancel(ctx)
	for _, hook := range state.drain() {
		runHook(detached, hook)
	}
	return nil
}

// AfterCommit registers hook against the transaction carried by ctx.
func AfterCommit(ctx context.Context, hook CommitHook) error {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return ErrNoTransaction
	}
	if hook != nil {
		state.add(hook)
	}
	return nil
}

// InTransaction reports whether ctx carries an open transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*txState)
	return ok
}

// Conn returns the transaction carried by ctx, or db bound to ctx.
func Conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return db.WithContext(ctx)
}

// runHook logs and swallows hook panics; the commit has already happened.
func runHook(ctx context.Context, hook CommitHook) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithModule("database").Error("after-commit hook panicked", zap.Any("panic", r))
		}
	}()
	hook(ctx)
}
