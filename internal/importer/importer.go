// Package importer turns bank CSV exports into stored transactions.
package importer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/dedupe/internal/logging"
	"github.com/cleared-dev/dedupe/internal/model"
)

// Parser converts a bank CSV file into BankTransactions.
type Parser interface {
	Parse(r io.Reader) ([]model.BankTransaction, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists registered formats alphabetically.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

// Creator is the write side of store.Store used by Load.
type Creator interface {
	Create(ctx context.Context, tx model.Transaction) (model.Transaction, error)
}

// Result is the outcome of Load.
type Result struct {
	Created []model.Transaction
	// Skipped holds credit rows, which are not billings.
	Skipped []model.BankTransaction
}

// Load parses r with p and creates one transaction per debit row. Rows are
// created in file order; on error the rows before it stay created.
func Load(ctx context.Context, c Creator, p Parser, r io.Reader) (Result, error) {
	rows, err := p.Parse(r)
	if err != nil {
		return Result{}, err
	}

	log := logging.FromContext(ctx)
	res := Result{Created: make([]model.Transaction, 0, len(rows))}
	for i, row := range rows {
		if row.IsCredit() {
			log.WithFields(logrus.Fields{"reference": row.Reference, "amount": row.Amount.String()}).Debug("skipping credit")
			res.Skipped = append(res.Skipped, row)
			continue
		}
		tx, err := c.Create(ctx, row.ToTransaction(p.Format()))
		if err != nil {
			return res, fmt.Errorf("creating row %d (%s): %w", i+1, row.Description, err)
		}
		log.WithFields(logrus.Fields{"transaction_id": tx.ID, "reference": tx.Reference}).Debug("imported")
		res.Created = append(res.Created, tx)
	}
	return res, nil
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

const (
	importDir    = "import"
	processedDir = "import/processed"
)

// Dir returns <root>/import.
func Dir(root string) string {
	return filepath.Join(root, importDir)
}

// Scan returns CSV files in <root>/import/, sorted by name.
func Scan(root string) ([]FileInfo, error) {
	dir := Dir(root)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/ and returns
// its new path. An existing file of the same name gets a numeric suffix.
func MarkProcessed(root, fileName string) (string, error) {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return "", fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	ext := filepath.Ext(fileName)
	stem := strings.TrimSuffix(fileName, ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			break
		}
		dst = filepath.Join(dstDir, stem+"-"+strconv.Itoa(n)+ext)
	}

	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return dst, nil
}
