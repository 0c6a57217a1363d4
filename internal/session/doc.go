// Package session tracks connected players keyed by their UDP address.
// It handles admin assignment and transfer, color assignment, liveness
// timestamps and per-session rate limiting.
package session
