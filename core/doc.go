// Package core contains the vault REST dispatch contracts, the operation
// table, and the per-item execution loop. Transport, persistence, and queue
// adapters depend on this package; core must not depend on them.
package core
