package remote

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ResultTable is the side table of one-shot result payloads referenced
// by sync lifecycle events. Payloads are stored serialized and must be
// explicitly released after consumption to bound growth. Retrieval of a
// stale or foreign payload returns nil rather than failing, and
// deletion of an unknown id is a no-op.
type ResultTable struct {
	mu      sync.Mutex
	entries map[string][]byte
	nextID  atomic.Int64
	logger  *slog.Logger
}

// NewResultTable creates an empty result table.
func NewResultTable(logger *slog.Logger) *ResultTable {
	return &ResultTable{
		entries: make(map[string][]byte),
		logger:  logger,
	}
}

// Put serializes a result, stores it under a fresh opaque id, and
// returns the id for embedding in the lifecycle event.
func (t *ResultTable) Put(res OperationResult) string {
	wire := map[string]any{
		"success": res.Success,
		"code":    res.Code.String(),
	}

	if res.Message != "" {
		wire["message"] = res.Message
	}

	if res.Item != nil {
		wire["item"] = res.Item
	}

	if res.OldPath != "" {
		wire["old_path"] = res.OldPath
	}

	if res.TargetPath != "" {
		wire["target_path"] = res.TargetPath
	}

	if res.TransferRequested {
		wire["transfer_requested"] = true
	}

	if res.Err != nil {
		wire["exception"] = res.Err.Error()
	}

	data, err := json.Marshal(wire)
	if err != nil {
		// Marshalling a map of plain values cannot fail in practice;
		// store an empty payload so Retrieve returns nil.
		data = nil
	}

	id := fmt.Sprintf("r%d", t.nextID.Add(1))
	t.PutRaw(id, data)

	return id
}

// PutRaw stores an already-serialized payload under the given id.
// The feed uses this for payloads minted by worker processes.
func (t *ResultTable) PutRaw(id string, data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[id] = data
}

// Retrieve parses the payload stored under id, or returns nil when the
// id is unknown or the payload does not parse. The entry is left in
// place; callers release it with Delete once the event is handled.
func (t *ResultTable) Retrieve(id string) *OperationResult {
	t.mu.Lock()
	data, ok := t.entries[id]
	t.mu.Unlock()

	if !ok || len(data) == 0 {
		return nil
	}

	res, err := DecodeResult(data)
	if err != nil {
		if t.logger != nil {
			t.logger.Warn("skipping unparseable result payload",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}

		return nil
	}

	return &res
}

// Delete releases the payload stored under id. Unknown ids and repeat
// deletions are no-ops.
func (t *ResultTable) Delete(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, id)
}

// Len returns the number of payloads currently held.
func (t *ResultTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}
