package main

// General API documentation for swaggo. Run `swag init -g cmd/fleetd/docs.go`
// to generate docs, then build with -tags=swagger.
//
// @title           fleetd API
// @version         1.0
// @description     Fleet coordinator API: agent reports, node queries and updates, catalog entities.
//
// @contact.name   fleetd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
