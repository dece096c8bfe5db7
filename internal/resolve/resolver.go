// Package resolve applies review decisions about duplicate groups to the
// store: deleting the selected copies and flagging what is left as reviewed.
//
// Every batch is sequential and best effort. The first failing store call
// stops it and nothing already applied is undone.
package resolve

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cleared-dev/dedupe/internal/auditlog"
	"github.com/cleared-dev/dedupe/internal/duplicates"
	"github.com/cleared-dev/dedupe/internal/id"
	"github.com/cleared-dev/dedupe/internal/logging"
	"github.com/cleared-dev/dedupe/internal/model"
)

// Store is the part of store.Store the resolver mutates through.
type Store interface {
	Update(ctx context.Context, id string, patch model.Patch) (model.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Phase identifies which half of a batch a Progress belongs to.
type Phase string

const (
	PhaseDelete Phase = "delete"
	PhaseMark   Phase = "mark"
	PhaseDone   Phase = "done"
)

// Progress is reported after every applied mutation.
type Progress struct {
	Phase         Phase
	TransactionID string
	Done          int
	Total         int
	// Fraction of the whole batch completed, in (0, 1].
	Fraction float64
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

// Result lists the mutations that were applied, including on failure.
type Result struct {
	Deleted []string
	Marked  []string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for failures and warnings.
func WithLogger(log logrus.FieldLogger) Option {
	return func(r *Resolver) { r.log = log }
}

// WithAudit records every applied mutation as actor.
func WithAudit(rec auditlog.Recorder, actor string) Option {
	return func(r *Resolver) {
		r.audit = rec
		r.actor = actor
	}
}

// WithClock overrides time.Now for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// Resolver runs resolution batches against a store. One batch at a time.
type Resolver struct {
	store Store
	log   logrus.FieldLogger
	audit auditlog.Recorder
	actor string
	now   func() time.Time
	busy  atomic.Bool
}

// New returns a Resolver over s.
func New(s Store, opts ...Option) *Resolver {
	r := &Resolver{
		store: s,
		log:   logging.Discard(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Busy reports whether a batch is running.
func (r *Resolver) Busy() bool {
	return r.busy.Load()
}

// DeleteSelected deletes ids in order, then flags the remaining members of
// every group that lost a member as reviewed. Groups without a deleted
// member are left alone. ids not found in any group are still deleted.
func (r *Resolver) DeleteSelected(ctx context.Context, groups []duplicates.Group, ids []string, progress ProgressFunc) (Result, error) {
	ids = id.Split(ids)
	if len(ids) == 0 {
		return Result{}, ErrNothingSelected
	}
	if !r.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer r.busy.Store(false)

	deleted := make(map[string]bool, len(ids))
	for _, txID := range ids {
		if duplicates.FindGroup(groups, txID) < 0 {
			r.log.WithField("transaction_id", txID).Warn("deleting a transaction outside every duplicate group")
		}
	}

	var res Result
	for i, txID := range ids {
		if err := r.apply(ctx, OpDelete, txID, func() error { return r.store.Delete(ctx, txID) }); err != nil {
			return res, err
		}
		deleted[txID] = true
		res.Deleted = append(res.Deleted, txID)
		r.record(auditlog.ActionDelete, txID, describeDeletion(groups, txID))
		report(progress, Progress{
			Phase:         PhaseDelete,
			TransactionID: txID,
			Done:          i + 1,
			Total:         len(ids),
			Fraction:      float64(i+1) / float64(len(ids)) * 0.5,
		})
	}

	survivors := survivorsOf(groups, deleted)
	if len(survivors) == 0 {
		report(progress, Progress{Phase: PhaseDone, Fraction: 1})
		return res, nil
	}

	for j, txID := range survivors {
		if err := r.markReviewed(ctx, txID, "kept after deleting duplicates"); err != nil {
			return res, err
		}
		res.Marked = append(res.Marked, txID)
		report(progress, Progress{
			Phase:         PhaseMark,
			TransactionID: txID,
			Done:          j + 1,
			Total:         len(survivors),
			Fraction:      0.5 + float64(j+1)/float64(len(survivors))*0.5,
		})
	}
	return res, nil
}

// Ignore flags every member of g as reviewed without deleting anything.
func (r *Resolver) Ignore(ctx context.Context, g duplicates.Group, progress ProgressFunc) (Result, error) {
	if len(g.Transactions) == 0 {
		return Result{}, &ValidationError{Reason: "empty group"}
	}
	if !r.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer r.busy.Store(false)

	var res Result
	n := len(g.Transactions)
	for i, tx := range g.Transactions {
		if err := r.markReviewed(ctx, tx.ID, "group ignored"); err != nil {
			return res, err
		}
		res.Marked = append(res.Marked, tx.ID)
		report(progress, Progress{
			Phase:         PhaseMark,
			TransactionID: tx.ID,
			Done:          i + 1,
			Total:         n,
			Fraction:      float64(i+1) / float64(n),
		})
	}
	return res, nil
}

// MatchGroup returns the group holding every one of ids.
func MatchGroup(groups []duplicates.Group, ids []string) (duplicates.Group, error) {
	ids = id.Split(ids)
	if len(ids) == 0 {
		return duplicates.Group{}, ErrNothingSelected
	}
	idx := duplicates.FindGroup(groups, ids[0])
	if idx < 0 {
		return duplicates.Group{}, &ValidationError{Reason: fmt.Sprintf("%s is not in any duplicate group", ids[0])}
	}
	for _, txID := range ids[1:] {
		if !groups[idx].Contains(txID) {
			return duplicates.Group{}, &ValidationError{Reason: fmt.Sprintf("%s is not in the same group as %s", txID, ids[0])}
		}
	}
	return groups[idx], nil
}

func (r *Resolver) markReviewed(ctx context.Context, txID, details string) error {
	err := r.apply(ctx, OpUpdate, txID, func() error {
		_, err := r.store.Update(ctx, txID, model.ReviewedPatch())
		return err
	})
	if err != nil {
		return err
	}
	r.record(auditlog.ActionMarkReview, txID, details)
	return nil
}

// apply runs one store call, turning a cancelled context or a store error
// into the batch's StoreOperationError.
func (r *Resolver) apply(ctx context.Context, op Op, txID string, call func() error) error {
	err := ctx.Err()
	if err == nil {
		err = call()
	}
	if err == nil {
		return nil
	}
	r.log.WithError(err).WithFields(logrus.Fields{
		"op":             op,
		"transaction_id": txID,
	}).Error("duplicate resolution halted")
	return &StoreOperationError{Op: op, ID: txID, Err: err}
}

func (r *Resolver) record(action, txID, details string) {
	if r.audit == nil {
		return
	}
	err := r.audit.Record(auditlog.Entry{
		Timestamp:     r.now(),
		Actor:         r.actor,
		Action:        action,
		TransactionID: txID,
		Details:       details,
	})
	if err != nil {
		r.log.WithError(err).WithField("transaction_id", txID).Warn("writing audit log")
	}
}

// survivorsOf returns, in group then member order, the members not deleted
// from groups that lost at least one member.
func survivorsOf(groups []duplicates.Group, deleted map[string]bool) []string {
	var out []string
	for _, g := range groups {
		touched := false
		for _, tx := range g.Transactions {
			if deleted[tx.ID] {
				touched = true
				break
			}
		}
		if !touched {
			continue
		}
		for _, tx := range g.Transactions {
			if !deleted[tx.ID] {
				out = append(out, tx.ID)
			}
		}
	}
	return out
}

func describeDeletion(groups []duplicates.Group, txID string) string {
	idx := duplicates.FindGroup(groups, txID)
	if idx < 0 {
		return "not in a duplicate group"
	}
	for _, tx := range groups[idx].Transactions {
		if tx.ID == txID {
			return fmt.Sprintf("%s %s on %s", tx.BusinessName, tx.BillingAmount.StringFixed(2), tx.Date.Format(time.DateOnly))
		}
	}
	return ""
}

func report(fn ProgressFunc, p Progress) {
	if fn != nil {
		fn(p)
	}
}
