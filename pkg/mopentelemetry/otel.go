// Package mopentelemetry carries the span-error-recording convention used
// throughout the adapters, grounded on the teacher's mopentelemetry helper.
package mopentelemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HandleSpanError records err on span with the given message and marks the
// span as errored, matching the teacher's single choke point for span error
// reporting so call sites never forget codes.Error.
func HandleSpanError(span *trace.Span, message string, err error) {
	if span == nil || err == nil {
		return
	}

	(*span).RecordError(err, trace.WithAttributes(attribute.String("message", message)))
	(*span).SetStatus(codes.Error, message)
}
