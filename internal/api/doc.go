// Package api serves the floravision HTTP API and defines its wire types.
//
// # Endpoints
//
//	GET  /api/status          cache size, running tasks, optional readiness checks
//	POST /api/enrich          {"path": ...} opens one image and returns its record
//	POST /api/batch           {"paths": [...]} starts a batch, returns 202 and the task id
//	GET  /api/records         every cached record ordered by path
//	GET  /api/records/{path}  one record; the path may be URL-escaped
//	GET  /api/events          websocket stream of scheduler events
//	GET  /api/logs            log lines (?limit, ?offset, ?follow, ?level, ?component, ?image)
//
// DTOs use camelCase JSON tags. Records are passed through in their stored
// form. When a token is configured every endpoint requires
// "Authorization: Bearer <token>".
package api
