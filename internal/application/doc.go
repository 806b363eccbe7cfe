// Package application provides application initialization and dependency wiring.
// It builds the collector runner, the collector config store, the API router,
// the metrics endpoint and the HTTP server, keeping the main package focused on
// CLI parsing and orchestration.
package application
