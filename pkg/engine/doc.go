// Package engine runs one voice-order turn end to end. Complete loads the
// current settings, builds the conversation, drives the provider through
// tool rounds until it answers, then normalizes the answer into an order
// and prices the tokens spent.
//
// A run is strictly sequential and owns its conversation. The engine keeps
// no per-run state, so one Engine serves concurrent requests.
package engine
