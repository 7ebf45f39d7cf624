package telemetry

import (
	"fmt"
	"maps"

	"go.opentelemetry.io/otel/attribute"
)

type SpanAttributes struct {
	ActionCategory string

	TargetBinary optional[string] // fuzz.target.binary
	Core         optional[int]    // fuzz.worker.core
	corpusSize   optional[int]    // fuzz.corpus.size
	executions   optional[uint64] // fuzz.executions
	crashes      optional[int]    // fuzz.crashes
	timeouts     optional[int]    // fuzz.timeouts

	extraAttributes map[string]any
}

func NewSpanAttributes(actionCategory ActionCategory) *SpanAttributes {
	return &SpanAttributes{
		ActionCategory:  actionCategory.String(),
		extraAttributes: make(map[string]any),
	}
}

// returns an empty SpanAttributes instance with no action category.
func EmptySpanAttributes() *SpanAttributes {
	return &SpanAttributes{
		extraAttributes: make(map[string]any),
	}
}

// Merge fills fields that are unset here from other. The action category is
// always taken from other when it has one.
func (o *SpanAttributes) Merge(other *SpanAttributes) {
	if other == nil {
		return
	}

	if other.ActionCategory != "" {
		o.ActionCategory = other.ActionCategory
	}

	mergeOptional(&o.TargetBinary, &other.TargetBinary)
	mergeOptional(&o.Core, &other.Core)
	mergeOptional(&o.corpusSize, &other.corpusSize)
	mergeOptional(&o.executions, &other.executions)
	mergeOptional(&o.crashes, &other.crashes)
	mergeOptional(&o.timeouts, &other.timeouts)

	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	for k, v := range other.extraAttributes {
		if _, exists := o.extraAttributes[k]; !exists {
			o.extraAttributes[k] = v
		}
	}
}

func (o *SpanAttributes) WithTargetBinary(val string) *SpanAttributes {
	o.TargetBinary.Set(val)
	return o
}

func (o *SpanAttributes) WithCore(val int) *SpanAttributes {
	o.Core.Set(val)
	return o
}

func (o *SpanAttributes) WithCorpusSize(val int) *SpanAttributes {
	o.corpusSize.Set(val)
	return o
}

func (o *SpanAttributes) WithExecutions(val uint64) *SpanAttributes {
	o.executions.Set(val)
	return o
}

func (o *SpanAttributes) WithCrashes(val int) *SpanAttributes {
	o.crashes.Set(val)
	return o
}

func (o *SpanAttributes) WithTimeouts(val int) *SpanAttributes {
	o.timeouts.Set(val)
	return o
}

func (o *SpanAttributes) WithExtraAttribute(key string, val any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	o.extraAttributes[key] = val
	return o
}

func (o *SpanAttributes) WithExtraAttributes(attrs map[string]any) *SpanAttributes {
	if o.extraAttributes == nil {
		o.extraAttributes = make(map[string]any)
	}
	maps.Copy(o.extraAttributes, attrs)
	return o
}

func (o SpanAttributes) Attributes() []attribute.KeyValue {
	var attrs []attribute.KeyValue
	attrs = append(attrs, attribute.String("crs.action.category", o.ActionCategory))
	if o.TargetBinary.set {
		attrs = append(attrs, attribute.String("fuzz.target.binary", o.TargetBinary.val))
	}
	if o.Core.set {
		attrs = append(attrs, attribute.Int("fuzz.worker.core", o.Core.val))
	}
	if o.corpusSize.set {
		attrs = append(attrs, attribute.Int("fuzz.corpus.size", o.corpusSize.val))
	}
	if o.executions.set {
		attrs = append(attrs, attribute.Int64("fuzz.executions", int64(o.executions.val)))
	}
	if o.crashes.set {
		attrs = append(attrs, attribute.Int("fuzz.crashes", o.crashes.val))
	}
	if o.timeouts.set {
		attrs = append(attrs, attribute.Int("fuzz.timeouts", o.timeouts.val))
	}

	for k, v := range o.extraAttributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	return attrs
}

type EventAttributes []attribute.KeyValue

func NewEventAttributes(attributes map[string]string) EventAttributes {
	attrs := make(EventAttributes, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

type optional[T any] struct {
	val T
	set bool
}

func (o *optional[T]) Set(val T) { o.val = val; o.set = true }

func mergeOptional[T any](target, source *optional[T]) {
	if !target.set && source.set {
		target.val = source.val
		target.set = true
	}
}
