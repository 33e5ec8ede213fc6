// Package internal contains the implementation packages of the assetflow
// CLI.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - glob: Ordered include/exclude pattern resolution with base directories
//   - pipeline: Assets, stages, transform tasks, series/parallel composition
//     and the per-output staleness filter
//   - transform: Concatenation, minification, image recompression, SVG
//     sprites, HTML includes and adapters around external tools
//   - tool: Invocation of external converters through argv templates
//   - tasks: The named tasks of a project and how they compose
//   - watcher: File system monitoring with debouncing and task bindings
//   - server: Static preview server with the live reload channel
//   - config: Configuration loading and validation
//   - errors: Typed pipeline errors naming the failing task and stage
//   - logging: Structured logging over log/slog
//   - validation: URL and origin checks for the preview server
//   - version: Build information
//
// # Inter-Package Communication
//
//   - tasks builds pipeline runners from config and hands the live ones the
//     preview server as their notifier
//   - watcher dispatches debounced change batches to the runners bound to
//     the changed paths
//   - server pushes reload and inject messages to connected browsers while
//     it is serving
//
// # Testing Strategy
//
//   - Unit tests against t.TempDir project fixtures
//   - Coreutils stand-ins (cat, cp, tr) for the external converters
//   - Property tests behind the property build tag
//
// For detailed documentation, see the individual package documentation.
package internal
