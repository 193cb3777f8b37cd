// Package jobmon tracks the lifecycle of background jobs running inside the
// current process.
//
// A Job couples three pieces of shared state:
//   - the latest human-readable progress message, published lock-free
//   - a write-once record of when and how the job finished
//   - a substrate handle used only to wait for completion
//
// Work functions receive a Monitor and report progress through it while any
// number of observers poll Status or block in Wait concurrently. A Registry
// keys jobs by caller-chosen IDs and guarantees at most one running job per
// key; finished jobs stay queryable until overwritten or cleaned up.
//
// Nothing here persists or distributes. All state lives in process memory
// and is lost on restart, and the core provides no cancellation: once
// started, work runs until it returns or panics.
package jobmon
