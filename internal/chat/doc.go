// Package chat keeps a chat client's view of one conversation in sync with
// the platform.
//
// A Session holds the directory (peers and groups), the active Thread, and
// that thread's message list. Selecting a thread loads its messages and
// subscribes to the change feed for it; sending appends an optimistic entry
// that is superseded by a full reload once the write is confirmed, or rolled
// back if it fails. Change events are only ever a trigger to reload.
//
// All platform access goes through the Backend and Feed interfaces so the
// state machine can be driven by fakes in tests.
package chat
