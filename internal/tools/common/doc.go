// Package common holds helpers shared by the MCP tool packages: argument
// extraction, error results and the instrumentation wrapper every tool is
// registered through.
package common
