// Package game runs the lobby: session login and liveness, chat with slash
// commands, and the number guessing round.
//
// Server owns every piece of mutable lobby state and is driven by Tick, which
// drains the transport queue, dispatches each packet to the feature systems,
// sweeps idle sessions and publishes a status snapshot. Nothing else mutates
// the lobby, so the feature systems use no locks.
package game
