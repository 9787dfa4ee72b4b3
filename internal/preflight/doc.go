// Package preflight provides readiness checks for the directories and
// services tracksync depends on.
//
// The daemon runs RunAll before arming the watcher and refuses to start when a
// required check fails. Filesystem layout and free space checks are advisory:
// a library on another filesystem still works, it just loses atomic renames.
// The CLI "tracksync status" command reuses the same checks for display.
package preflight
