// Package csvstore keeps transactions in a single CSV file so a project can
// live in a plain git repository.
package csvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/model"
	"github.com/cleared-dev/dedupe/internal/store"
)

// Store is a store.Store backed by one transactions.csv file.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New creates a Store for the CSV file at path. The file is created on the
// first write.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Init writes an empty file with only the header, unless one exists.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	return s.writeAll(nil)
}

// List returns transactions ordered and limited per opts.
func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.readAll()
	if err != nil {
		return nil, err
	}
	return store.SortAndLimit(txs, opts), nil
}

// Create validates tx, assigns an ID and appends it to the file
// (creating dir + header if new).
func (s *Store) Create(ctx context.Context, tx model.Transaction) (model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return model.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = id.New()
	if err := store.AsError(store.ValidateTransaction(tx)); err != nil {
		return model.Transaction{}, err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return model.Transaction{}, fmt.Errorf("creating store dir: %w", err)
	}

	isNew := false
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		isNew = true
	}

	f, err := openForAppend(s.path)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("opening transactions: %w", err)
	}
	if err := appendRow(f, tx, isNew); err != nil {
		f.Close()
		return model.Transaction{}, err
	}
	if err := f.Close(); err != nil {
		return model.Transaction{}, fmt.Errorf("closing transactions: %w", err)
	}
	return tx, nil
}

var openForAppend = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}

func appendRow(w io.Writer, tx model.Transaction, header bool) error {
	if header {
		if _, err := fmt.Fprintln(w, Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	if err := AppendTransactions(w, []model.Transaction{tx}); err != nil {
		return fmt.Errorf("appending transaction: %w", err)
	}
	return nil
}

// Update merges patch into the transaction with the given ID and rewrites
// the file.
func (s *Store) Update(ctx context.Context, txID string, patch model.Patch) (model.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return model.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.readAll()
	if err != nil {
		return model.Transaction{}, err
	}

	for i := range txs {
		if txs[i].ID != txID {
			continue
		}
		txs[i] = patch.Apply(txs[i])
		if err := s.writeAll(txs); err != nil {
			return model.Transaction{}, err
		}
		return txs[i], nil
	}
	return model.Transaction{}, fmt.Errorf("updating %s: %w", txID, store.ErrNotFound)
}

// Delete removes the transaction with the given ID and rewrites the file.
func (s *Store) Delete(ctx context.Context, txID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	txs, err := s.readAll()
	if err != nil {
		return err
	}

	for i := range txs {
		if txs[i].ID != txID {
			continue
		}
		kept := append(txs[:i:i], txs[i+1:]...)
		return s.writeAll(kept)
	}
	return fmt.Errorf("deleting %s: %w", txID, store.ErrNotFound)
}

func (s *Store) readAll() ([]model.Transaction, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening transactions %s: %w", s.path, err)
	}
	defer f.Close()

	txs, err := ReadTransactions(f)
	if err != nil {
		return nil, fmt.Errorf("reading transactions %s: %w", s.path, err)
	}
	if err := store.AsError(store.Validate(txs)); err != nil {
		return nil, fmt.Errorf("checking transactions %s: %w", s.path, err)
	}
	return txs, nil
}

// writeAll replaces the file atomically via a temp file in the same directory.
func (s *Store) writeAll(txs []model.Transaction) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating store dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".transactions-*.csv")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTransactions(tmp, txs); err != nil {
		tmp.Close()
		return fmt.Errorf("writing transactions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
