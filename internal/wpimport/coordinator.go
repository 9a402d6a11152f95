// Package wpimport coordinates asynchronous WP All Import jobs: trigger
// and cancel calls against the remote endpoint, plus a TTL-cached status
// record that an out-of-band completion callback later overwrites.
package wpimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// cacheKeyPrefix matches the key shape used by the callback side.
const cacheKeyPrefix = "import_status_"

// ErrAlreadyRunning is returned by Trigger when a pending entry exists
// for the import. The store is not touched in that case.
var ErrAlreadyRunning = errors.New("import is already pending")

// StatusStore is the TTL cache the coordinator records job status in.
// *statuscache.Store satisfies it.
type StatusStore interface {
	Put(key, payload string, ttl time.Duration) error
	Get(key string) (string, bool, error)
	Remove(key string) error
}

type Coordinator struct {
	store  StatusStore
	remote Remote
	ttl    time.Duration
	now    func() time.Time
}

func NewCoordinator(store StatusStore, remote Remote, ttl time.Duration) *Coordinator {
	return &Coordinator{
		store:  store,
		remote: remote,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Trigger starts an import run. It refuses to start while a pending entry
// exists. Otherwise it writes a pending status first, then calls the
// remote endpoint: on confirmation the pending entry stands until the
// completion callback arrives; on rejection or transport failure the
// entry is rolled back. A timeout leaves the entry in place because the
// remote side may have acted anyway.
func (c *Coordinator) Trigger(ctx context.Context, importID string) (JobStatus, error) {
	if importID == "" {
		return JobStatus{Status: StatusUnknown}, errors.New("import id is required")
	}

	current := c.Read(importID)
	if current.Status == StatusPending {
		log.Warn().Str("import_id", importID).Str("run_id", current.RunID).Msg("Trigger refused, import already pending")
		return current, ErrAlreadyRunning
	}

	pending := JobStatus{
		Status:    StatusPending,
		ImportID:  importID,
		RunID:     uuid.NewString(),
		StartTime: c.now().Unix(),
		Message:   "Import trigger sent, waiting for completion callback.",
	}
	if err := c.put(pending); err != nil {
		return JobStatus{Status: StatusUnknown, ImportID: importID}, err
	}

	message, err := c.remote.Trigger(ctx, importID)
	if err != nil {
		var re *RemoteError
		if errors.As(err, &re) && re.Kind == KindTimeout {
			// Ambiguous: the CLI may have launched. Keep the pending
			// entry so the callback can still resolve it.
			log.Warn().Str("import_id", importID).Msg("Trigger timed out, keeping pending status")
			pending.Message = "Trigger request timed out, outcome uncertain."
			if putErr := c.put(pending); putErr != nil {
				log.Error().Err(putErr).Str("import_id", importID).Msg("Failed to record timeout note")
			}
			return pending, err
		}
		if rmErr := c.store.Remove(cacheKeyPrefix + importID); rmErr != nil {
			log.Error().Err(rmErr).Str("import_id", importID).Msg("Failed to roll back pending status")
		}
		log.Error().Err(err).Str("import_id", importID).Msg("Import trigger failed")
		return JobStatus{Status: StatusUnknown, ImportID: importID}, err
	}

	pending.Message = message
	if err := c.put(pending); err != nil {
		log.Error().Err(err).Str("import_id", importID).Msg("Failed to record trigger confirmation")
	}
	return pending, nil
}

// Complete records the completion figures reported by the remote system,
// overwriting whatever entry exists and resetting the TTL.
func (c *Coordinator) Complete(importID string, comp Completion) error {
	status := JobStatus{
		Status:       StatusComplete,
		ImportID:     importID,
		Created:      comp.Created,
		Updated:      comp.Updated,
		Deleted:      comp.Deleted,
		Skipped:      comp.Skipped,
		StartTime:    comp.StartTime,
		EndTime:      comp.EndTime,
		ReceivedTime: c.now().Unix(),
		Message:      "Import completed successfully via callback.",
	}
	if err := c.put(status); err != nil {
		return err
	}
	log.Info().
		Str("import_id", importID).
		Int("created", comp.Created).
		Int("updated", comp.Updated).
		Int("deleted", comp.Deleted).
		Int("skipped", comp.Skipped).
		Msg("Import completion recorded")
	return nil
}

// Cancel asks the remote endpoint to stop the import. Only a confirmed
// cancellation removes the status entry; on failure the entry stands so
// the operator still sees the last known state.
func (c *Coordinator) Cancel(ctx context.Context, importID string) error {
	if err := c.remote.Cancel(ctx, importID); err != nil {
		log.Error().Err(err).Str("import_id", importID).Msg("Import cancellation failed")
		return err
	}
	if err := c.store.Remove(cacheKeyPrefix + importID); err != nil {
		return fmt.Errorf("cancellation confirmed but status cleanup failed: %w", err)
	}
	log.Info().Str("import_id", importID).Msg("Import cancelled, status cleared")
	return nil
}

// Clear unconditionally removes the status entry. Recovery tool for
// entries stuck in pending; clearing an absent entry succeeds.
func (c *Coordinator) Clear(importID string) error {
	if err := c.store.Remove(cacheKeyPrefix + importID); err != nil {
		return err
	}
	log.Info().Str("import_id", importID).Msg("Import status cleared")
	return nil
}

// Read returns the current job status without mutating anything. Absent,
// expired and corrupt entries all read as unknown.
func (c *Coordinator) Read(importID string) JobStatus {
	unknown := JobStatus{Status: StatusUnknown, ImportID: importID}

	payload, ok, err := c.store.Get(cacheKeyPrefix + importID)
	if err != nil {
		log.Error().Err(err).Str("import_id", importID).Msg("Status read failed")
		return unknown
	}
	if !ok {
		return unknown
	}

	var status JobStatus
	if err := json.Unmarshal([]byte(payload), &status); err != nil {
		log.Warn().Err(err).Str("import_id", importID).Msg("Corrupt status payload, treating as unknown")
		return unknown
	}
	if status.Status == "" {
		return unknown
	}
	return status
}

// ClearRemoteCache flushes the remote site's page cache.
func (c *Coordinator) ClearRemoteCache(ctx context.Context) (string, error) {
	return c.remote.ClearCache(ctx)
}

func (c *Coordinator) put(status JobStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode status: %w", err)
	}
	return c.store.Put(cacheKeyPrefix+status.ImportID, string(payload), c.ttl)
}
