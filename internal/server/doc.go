// Package server exposes the booking service over HTTP.
//
// # Key Components
//
// ServerContext carries the booking service and the shared instrumentation
// (metrics, audit logger, logger) to both the REST handlers and the MCP tools.
//
// HTTPServer mounts, on one chi router:
//   - GET /availability, GET /bookings, POST /bookings,
//     PATCH /bookings/{id}, DELETE /bookings/{id}
//   - /healthz, /readyz and /health probes
//   - the streamable HTTP MCP endpoint at /mcp, when an MCP server is given
//
// Errors from the booking core are mapped by Classify: validation failures are
// 400, a cancelled booking is 409, upstream 404/409/410 pass through, other
// upstream and identity failures are 502 and configuration problems are 500.
// Identity and configuration details are logged, never returned to clients.
//
// MetricsServer serves Prometheus metrics on a separate port.
package server
