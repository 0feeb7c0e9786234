/*
Package storage persists controller state using BoltDB.

The Store interface abstracts persistence so components depend on the
contract, not on BoltDB. Three buckets exist:

	slots     app/<slot-id>       → JSON Slot
	routes    app                 → JSON TrafficRoute
	rollouts  app/<big-endian seq> → JSON RolloutRecord

Slots and routes are upserted in place. Rollout records are append-only:
each Append assigns the bucket's next sequence number, so a cursor scan
returns records in insertion order and nothing is ever overwritten. The
rollback controller relies on this ordering to find the rollout record
immediately preceding a failed switch.

All values are JSON-marshaled. BoltDB gives single-writer transactional
semantics, which is sufficient here because the registry already
serializes slot mutations above this layer.
*/
package storage
