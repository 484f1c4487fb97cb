// Package registry holds the coordinator's single source of truth for
// which controllers are currently connected and what they report about
// themselves: the device inventory declared at registration and the
// runtime state reported since.
//
// A DeviceRecord exists if and only if a session for its target_id is
// open and that session has completed the device_info handshake.
// Registry consolidates what would otherwise be two parallel maps (an
// inventory table and a connection table) into one record type guarded
// by a single mutex, so that "record exists" and "session exists" can
// never disagree.
package registry
