// Package diagnostics reports the health of the host the advisor runs on:
// CPU, memory, disk and load from the operating system plus the runtime
// statistics of the advisor process itself.
//
// The snapshot is served by the /health endpoint and printed by
// "advisor doctor". Every collector is best-effort: one that fails leaves
// its fields at zero and adds a note instead of failing the snapshot.
package diagnostics
