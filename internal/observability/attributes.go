// Package observability provides run metrics exported in Prometheus format.
package observability

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrSuccess   = "success"
	attrOutcome   = "outcome"
	attrProcessor = "processor"
	attrPool      = "pool"
)

func methodAttr(method string) attribute.KeyValue {
	return attribute.String(attrMethod, method)
}

func pathAttr(path string) attribute.KeyValue {
	return attribute.String(attrPath, normalizePath(path))
}

func statusAttr(code int) attribute.KeyValue {
	// 200-299 -> 2xx, 400-499 -> 4xx, 0 -> error (no response)
	if code == 0 {
		return attribute.String(attrStatus, "error")
	}
	return attribute.String(attrStatus, fmt.Sprintf("%dxx", code/100))
}

func successAttr(success bool) attribute.KeyValue {
	return attribute.Bool(attrSuccess, success)
}

func outcomeAttr(outcome string) attribute.KeyValue {
	return attribute.String(attrOutcome, outcome)
}

func processorAttr(processor string) attribute.KeyValue {
	return attribute.String(attrProcessor, processor)
}

func poolAttr(pool string) attribute.KeyValue {
	return attribute.String(attrPool, pool)
}

// normalizePath folds per-job status paths to keep label cardinality bounded.
func normalizePath(path string) string {
	const prefix = "/v1/run/jobs/"
	if strings.HasPrefix(path, prefix) && len(path) > len(prefix) {
		return prefix + "{jobId}"
	}
	return path
}
