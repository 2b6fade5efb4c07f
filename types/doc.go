// Package types holds the data model shared by every orchestrator
// component: model descriptors, task requirements, provider request/response
// shapes, cost events, and the structured error taxonomy. Nothing in this
// package depends on any other orchestrator package, keeping it safe to
// import from registry, analyzer, scorer, selector, providers, pool,
// executor, fallback, cost, and orchestrator alike.
package types
