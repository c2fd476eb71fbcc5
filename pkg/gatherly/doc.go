// Package gatherly provides the typed domain services of the Gatherly SDK:
// auth, events and locations. Each service is a thin wrapper over the
// apix.Client with fixed endpoints and a per-service table translating
// HTTP statuses into user-presentable messages. Services hold no state
// beyond what the client exposes.
package gatherly
