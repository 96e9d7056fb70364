// Package cmd implements the command-line interface for meetingbroker.
//
// This package provides the following commands:
//   - serve: Start the REST API and MCP server (http) or the MCP server alone (stdio)
//   - auth: Resolve credentials and report the selected authentication mode
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
//
// Configuration comes from a .env file, then the environment, then flags.
package cmd
