package migration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/krrrr38/github-2-github/pkg/model"
	"github.com/krrrr38/github-2-github/pkg/state"
)

// ScanDestination adopts destination items carrying the import marker that state does not know about.
// Listing failures are logged and do not stop the run.
func (c *Coordinator) ScanDestination(ctx context.Context, st *state.MigrationState, report *Report) error {
	adopted := 0
	for _, kind := range c.opts.kinds() {
		items, err := c.listItems(ctx, c.dest, kind, "all")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Failed to scan destination for imported items", "kind", kind, "error", err)
			continue
		}
		for _, item := range items {
			src, number, ok := parseMarker(item.Body)
			if !ok || !strings.EqualFold(src, c.source.FullName()) {
				continue
			}
			key := state.Key(number)
			if st.IsKnown(kind, key) {
				continue
			}
			logger.Info("Adopting imported item found on destination", "kind", kind, "source", number, "destination", item.Number)
			st.RecordImport(kind, key, item.Number, item.State)
			adopted++
		}
	}
	report.Adopted += adopted
	if adopted > 0 {
		return c.persist(st)
	}
	return nil
}

// ReconcileExistingImports propagates source state changes to previously imported items
func (c *Coordinator) ReconcileExistingImports(ctx context.Context, st *state.MigrationState, report *Report) error {
	for _, kind := range c.opts.kinds() {
		keys := state.SortedKeys(st.Imports(kind))
		logger.Info("Verifying existing imports", "kind", kind, "count", len(keys))
		for _, key := range keys {
			if st.IsErrored(kind, key) {
				continue
			}
			out, changed := c.reconcileItem(ctx, st, kind, key, report)
			report.Reconcile.Add(out)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if changed {
				if err := c.persist(st); err != nil {
					return err
				}
			}
		}
	}
	return c.persist(st)
}

// reconcileItem checks one mapping and reports whether st changed
func (c *Coordinator) reconcileItem(ctx context.Context, st *state.MigrationState, kind model.ItemKind, key string, report *Report) (Outcome, bool) {
	rec, _ := st.Import(kind, key)
	number, err := strconv.Atoi(key)
	if err != nil {
		err = fmt.Errorf("invalid item number %q", key)
		st.RecordError(kind, key, err, c.now())
		return Outcome{Kind: OutcomeTransient, Destination: rec.DstNum, Err: err}, true
	}
	out := Outcome{Kind: OutcomeSuccess, Source: number, Destination: rec.DstNum}

	recordErr := func(err error) (Outcome, bool) {
		out.Kind = OutcomeTransient
		out.Err = err
		if ctx.Err() != nil {
			return out, false
		}
		logger.Warn("Failed to verify import", "kind", kind, "source", number, "destination", rec.DstNum, "error", err)
		st.RecordError(kind, key, err, c.now())
		return out, true
	}

	src, err := c.getItem(ctx, c.source, kind, number)
	if err != nil {
		return recordErr(fmt.Errorf("failed to fetch source #%d: %w", number, err))
	}
	dst, err := c.getItem(ctx, c.dest, kind, rec.DstNum)
	if errors.Is(err, model.ErrNotFound) {
		if c.opts.ReimportMissing {
			logger.Warn("Destination item not found, it will be imported again", "kind", kind, "source", number, "destination", rec.DstNum)
			st.RemoveImport(kind, key)
			report.Evicted++
			return out, true
		}
		return recordErr(fmt.Errorf("destination #%d not found", rec.DstNum))
	}
	if err != nil {
		return recordErr(fmt.Errorf("failed to fetch destination #%d: %w", rec.DstNum, err))
	}

	if src.State == rec.State {
		return out, false
	}
	logger.Info("Source state changed", "kind", kind, "source", number, "from", rec.State, "to", src.State)
	st.SetImportState(kind, key, src.State)
	report.Updated++

	if src.State.IsClosed() && !dst.State.IsClosed() {
		if c.opts.DryRun {
			logger.Info("Would close destination item", "kind", kind, "destination", rec.DstNum)
			return out, true
		}
		if err := c.closeItem(ctx, c.dest, kind, rec.DstNum); err != nil {
			return recordErr(fmt.Errorf("failed to close destination #%d: %w", rec.DstNum, err))
		}
		logger.Info("Closed destination item", "kind", kind, "destination", rec.DstNum)
		report.Closed++
	}
	return out, true
}

// ReconcileOrphanedBranches recreates pull requests for pushed branches that have none
func (c *Coordinator) ReconcileOrphanedBranches(ctx context.Context, st *state.MigrationState, report *Report) error {
	branches, err := c.dest.ListOrphanedBranches(ctx, c.opts.Prefix)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("Failed to check for orphaned branches", "error", err)
		return nil
	}
	if len(branches) == 0 {
		logger.Info("No orphaned PR branches found")
		return nil
	}
	report.OrphansFound = len(branches)
	logger.Info("Found orphaned PR branches", "count", len(branches))

	for _, branch := range branches {
		number, ok := branchNumber(c.opts.Prefix, branch)
		if !ok {
			logger.Warn("Could not extract PR number from branch", "branch", branch)
			continue
		}
		key := state.Key(number)
		if st.IsErrored(model.KindPullRequest, key) {
			logger.Warn("Skipping orphaned branch of an errored PR", "branch", branch, "number", number)
			continue
		}
		if st.IsImported(model.KindPullRequest, key) {
			logger.Warn("Skipping orphaned branch of an already imported PR", "branch", branch, "number", number)
			continue
		}
		if c.opts.DryRun {
			logger.Info("Would recreate PR for orphaned branch", "branch", branch, "number", number)
			continue
		}
		if c.opts.Interactive {
			ok, err := c.confirm(func() (bool, error) { return c.prompter.ConfirmOrphanRecovery(branch, number) })
			if err != nil {
				return err
			}
			if !ok {
				logger.Info("Skipping PR creation", "branch", branch)
				continue
			}
		}

		created, err := c.recoverOrphan(ctx, number, branch)
		if err != nil {
			if c.interrupted(ctx, err) {
				return c.abortCause(ctx, err)
			}
			logger.Error("Failed to create PR for orphaned branch", "branch", branch, "error", err)
			if err := c.offerBranchDeletion(ctx, branch); err != nil {
				return err
			}
			continue
		}
		st.RecordImport(model.KindPullRequest, key, created.Number, model.StateOpen)
		if err := c.persist(st); err != nil {
			return err
		}
		report.OrphansRecovered++
		logger.Info("Created PR for orphaned branch", "branch", branch, "destination", created.Number, "url", created.HTMLURL)
	}
	return nil
}

func (c *Coordinator) recoverOrphan(ctx context.Context, number int, branch string) (*model.Item, error) {
	pr, err := c.source.GetPullRequest(ctx, number)
	if err != nil {
		return nil, err
	}
	created, err := c.openPullRequest(ctx, pr, branch)
	if err != nil {
		return nil, err
	}
	if err := c.replicateDiscussion(ctx, model.KindPullRequest, pr.Number, created.Number); err != nil {
		return nil, err
	}
	return created, nil
}

// offerBranchDeletion asks to delete a branch whose PR could not be recreated, in interactive mode only
func (c *Coordinator) offerBranchDeletion(ctx context.Context, branch string) error {
	if !c.opts.Interactive {
		return nil
	}
	ok, err := c.confirm(func() (bool, error) { return c.prompter.ConfirmBranchDeletion(branch) })
	if err != nil || !ok {
		return err
	}
	if err := c.dest.DeleteBranch(ctx, branch); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Error("Failed to delete branch", "branch", branch, "error", err)
		return nil
	}
	logger.Info("Deleted orphaned branch", "branch", branch)
	return nil
}
