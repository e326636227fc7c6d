// Package internal contains the implementation packages for weft.
//
// These packages follow Go's internal package convention: they provide all
// of the preprocessor's functionality to the weft CLI while staying
// unavailable for import by external modules.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: configuration loading, defaults, and per-folder overrides
//   - engine: the processing pipeline and the page, code, sass, and static engines
//   - errors: structured error types and compiler output parsing
//   - logging: structured logging with component and indentation context
//   - scaffolding: project and source file generation for weft init
//   - scheduler: cascade ordering over the reference graph in watch mode
//   - server: the development HTTP server with live-reload over websockets
//   - tags: the comment directive grammar shared by every text engine
//   - tracker: source discovery and the include/use reference graph
//   - types: the source file and output target records engines exchange
//   - validation: allowlist checks for paths, commands, origins, and URLs
//   - version: build metadata stamped at link time
//   - watcher: debounced filesystem monitoring
//
// # Processing Model
//
// The engines transform sources into output targets; the tracker knows which
// sources reference which; the scheduler walks that graph so a change to a
// shared partial regenerates every page built on it. The watcher feeds the
// scheduler in watch mode, and the server broadcasts each completed pass to
// connected browsers.
//
// # Security Considerations
//
// Values that reach the operating system or the browser pass through the
// validation package first: the sass command and its arguments are
// allowlisted, user-supplied paths are checked for traversal, websocket
// origins are verified against the serving host, and rejected values are
// logged as security events.
package internal
