package domain

import "errors"

// Error taxonomy. Every failure surfaced by the core wraps one of these
// sentinels so callers can classify with errors.Is regardless of the layer
// that produced it. Invariant violations are recoverable errors, never
// process aborts.
var (
	// ErrNotFound reports a lookup of an id with no row.
	ErrNotFound = errors.New("not found")

	// ErrIDInUse reports a create with an explicit id that already exists.
	ErrIDInUse = errors.New("id already in use")

	// ErrUniquenessViolation reports a one-to-one edge about to be shared by
	// two left-side rows.
	ErrUniquenessViolation = errors.New("uniqueness violation")

	// ErrMissingRequiredReference reports a relationship pointing at an id
	// that does not resolve to an entity of the expected kind.
	ErrMissingRequiredReference = errors.New("missing required reference")

	// ErrValidationFailed reports schema, name or type validation failures.
	ErrValidationFailed = errors.New("validation failed")

	// ErrCycleDetected reports an inheritance chain that loops.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrStorage wraps failures of the underlying KV engine.
	ErrStorage = errors.New("storage error")

	// ErrCodec wraps row encoding and decoding failures.
	ErrCodec = errors.New("codec error")

	// ErrCancelledByUser reports a long operation stopped by request.
	ErrCancelledByUser = errors.New("cancelled by user")

	// ErrTemplateNotFound reports an unknown template name.
	ErrTemplateNotFound = errors.New("template not found")

	// ErrTemplateRenderFailed reports a template execution failure.
	ErrTemplateRenderFailed = errors.New("template render failed")

	// ErrIO wraps filesystem failures of the generation pipeline.
	ErrIO = errors.New("io error")
)
