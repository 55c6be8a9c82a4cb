// Package sync reconciles CMS records with their mirror on disk.
//
// Each kind (modules, templates, actions) is mirrored as one directory per
// record under <base>/<kind>/<key>, holding a metadata.yml descriptor and
// the kind's content files. A Synchronizer reconciles one kind in two phases:
//
//   - store to disk: every record gets a key if it lacks one and its
//     directory is written when missing, unreadable or older than the record
//   - disk to store: every directory not written in the first phase is
//     imported, inserting unknown keys and updating records whose files differ
//
// Edits on both sides since the last write are detected through the
// descriptor checksum and reported as conflicts instead of being overwritten.
//
// # Manager
//
// The Manager runs the kinds in order, persists the outcome through the
// state service, and decides whether an automatic sync is due. Automatic
// syncs are skipped while paused, for disabled origins, when nothing changed
// since the last sync, or while another run holds the process lock.
//
// Runs of different processes on the same mirror are serialized with a
// per-kind file lock in the state directory.
package sync
