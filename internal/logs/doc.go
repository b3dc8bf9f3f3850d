// Package logs reads the JSON log file written next to the console output.
//
// Tail returns the last N lines or everything after an offset, optionally
// polling until new lines arrive. Filter keeps lines at or above a level and
// for one component; Format renders a JSON line the way the console handler
// would. `floravision logs` and GET /api/logs are built on these helpers.
package logs
