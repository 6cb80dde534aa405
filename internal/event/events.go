// Package event defines the lifecycle event union and the broadcaster that
// fans serialized events out to connected clients.
package event

import (
	"github.com/google/uuid"

	"github.com/bfengine/assetpipe/internal/asset"
)

// CompileState is the per-asset compilation lifecycle.
type CompileState string

const (
	StateQueued    CompileState = "Queued"
	StateCompiling CompileState = "Compiling"
	StateCompiled  CompileState = "Compiled"
	StateError     CompileState = "Error"
)

// AssetUpdate announces a created or mutated asset record.
type AssetUpdate struct {
	Type  string      `json:"type"`
	Asset asset.Asset `json:"asset"`
}

// NewAssetUpdate wraps an asset in its event envelope.
func NewAssetUpdate(a asset.Asset) AssetUpdate {
	return AssetUpdate{Type: "AssetUpdate", Asset: a}
}

// AssetRemoved announces that an asset left the catalog.
type AssetRemoved struct {
	Type string    `json:"type"`
	ID   uuid.UUID `json:"id"`
}

func NewAssetRemoved(id uuid.UUID) AssetRemoved {
	return AssetRemoved{Type: "AssetRemoved", ID: id}
}

// AssetDirtyStatus reports the result of a dirtiness recomputation.
type AssetDirtyStatus struct {
	Type  string    `json:"type"`
	ID    uuid.UUID `json:"id"`
	Dirty bool      `json:"dirty"`
}

func NewAssetDirtyStatus(id uuid.UUID, dirty bool) AssetDirtyStatus {
	return AssetDirtyStatus{Type: "AssetDirtyStatus", ID: id, Dirty: dirty}
}

// AssetCompilationStatus tracks one submission through the scheduler.
// Error is set only when State is StateError.
type AssetCompilationStatus struct {
	Type  string       `json:"type"`
	ID    uuid.UUID    `json:"id"`
	State CompileState `json:"state"`
	Error string       `json:"error,omitempty"`
}

func NewAssetCompilationStatus(id uuid.UUID, state CompileState, errText string) AssetCompilationStatus {
	return AssetCompilationStatus{Type: "AssetCompilationStatus", ID: id, State: state, Error: errText}
}

// CompilerStatus is the scheduler's queue telemetry snapshot.
type CompilerStatus struct {
	Type        string `json:"type"`
	Queued      int64  `json:"queued"`
	Concurrency int64  `json:"concurrency"`
	EtaMS       int64  `json:"eta_ms"`
}

func NewCompilerStatus(queued, concurrency, etaMS int64) CompilerStatus {
	return CompilerStatus{Type: "CompilerStatus", Queued: queued, Concurrency: concurrency, EtaMS: etaMS}
}

// ScanResults summarizes one full library rescan.
type ScanResults struct {
	Type     string      `json:"type"`
	Scanned  int         `json:"scanned"`
	Imported int         `json:"imported"`
	Removed  int         `json:"removed"`
	Dirty    []uuid.UUID `json:"dirty"`
}

func NewScanResults(scanned, imported, removed int, dirty []uuid.UUID) ScanResults {
	return ScanResults{Type: "ScanResults", Scanned: scanned, Imported: imported, Removed: removed, Dirty: dirty}
}
