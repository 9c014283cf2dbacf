// Package api groups the DataVita HTTP surface.
//
// # Routes
//
//	POST   /api/python/validate
//	POST   /api/python/execute
//	POST   /api/python/cells/{id}/input
//	POST   /api/python/cells/{id}/output
//	GET    /api/python/cells/{id}/output
//	GET    /api/python/files
//	POST   /api/pyspark/execute
//	POST   /api/pyspark/execute-file
//	POST   /api/pyspark/stop
//	GET    /api/pyspark/tables
//	GET    /api/pyspark/tables/{name}/schema
//	GET    /api/pyspark/tables/{name}/data
//	POST   /api/sql/execute
//	GET    /api/sql/scripts
//	POST   /api/sql/scripts
//	GET    /api/sql/scripts/{name}
//	PUT    /api/sql/scripts/{name}
//	DELETE /api/sql/scripts/{name}
//	GET    /api/sql/metadata
//	GET    /api/notebook/state
//	POST   /api/notebook/reset
//	GET    /api/notebook/export?format=ipynb|script
//	GET    /api/notebook/versions
//	GET    /ws/notebook
//
// # Authentication
//
// When auth is enabled every /api and /ws route expects a bearer JWT whose
// subject is a user known to the metadata database:
//
//	Authorization: Bearer <token>
//
// Handlers live in api/handlers; the server wiring is in cmd/datavita.
package api
