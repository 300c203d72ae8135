// Package audit writes Process Decision Records for submission outcomes and
// user decisions.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/twistedatrocity/swgaide/internal/models"
	"github.com/twistedatrocity/swgaide/internal/store"
)

// Action names used across the engine.
const (
	ActionBatch         = "batch.run"
	ActionStaleSnapshot = "decision.stale_snapshot"
	ActionStaleArtifact = "decision.stale_artifact"
	ActionLineError     = "decision.line_error"
	ActionCollision     = "decision.collision"
	ActionAutoDelete    = "decision.auto_delete"
)

// PDRWriter writes Process Decision Records for audit trails.
type PDRWriter struct {
	store *store.Store
}

// NewPDRWriter creates a new PDR writer.
func NewPDRWriter(s *store.Store) *PDRWriter {
	return &PDRWriter{store: s}
}

// Record writes a PDR entry for a submission or decision about resource.
func (w *PDRWriter) Record(action string, inputs interface{}, outcome, resource, details string) (*models.PDREntry, error) {
	return w.store.WritePDR(action, hashInputs(inputs), outcome, resource, details)
}

// Recent returns the latest records, optionally filtered by action.
func (w *PDRWriter) Recent(action string, limit int) ([]models.PDREntry, error) {
	return w.store.ListPDR(action, limit)
}

// hashInputs creates a SHA256 hash of the inputs for reproducibility.
func hashInputs(inputs interface{}) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
