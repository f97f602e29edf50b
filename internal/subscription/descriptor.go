// Package subscription declares which fields of a platform event a webhook
// receives, and renders that declaration as a GraphQL subscription query.
//
// A Descriptor is built once at start-up and is read-only afterwards, so it
// can be shared between concurrent requests without locking.
package subscription

import (
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[_A-Za-z][_0-9A-Za-z]*$`)

// Descriptor is a validated projection of one event type.
type Descriptor struct {
	eventType EventType
	name      string
	fields    []string
	root      *selection
	query     string
}

type selection struct {
	name     string
	children []*selection
}

func (s *selection) leaf() bool {
	return len(s.children) == 0
}

func (s *selection) child(name string) *selection {
	for _, c := range s.children {
		if c.name == name {
			return c
		}
	}
	c := &selection{name: name}
	s.children = append(s.children, c)
	return c
}

// Option customises a Descriptor.
type Option func(*Descriptor)

// WithName sets the subscription operation name. It defaults to the event's
// GraphQL type.
func WithName(name string) Option {
	return func(d *Descriptor) {
		d.name = name
	}
}

// Build validates fields against the event schema and returns a descriptor.
// Fields are dotted paths to leaf fields, e.g. "product.name".
func Build(eventType EventType, fields []string, opts ...Option) (*Descriptor, error) {
	if !eventType.Known() {
		return nil, &InvalidFieldError{EventType: eventType, Reason: "unsupported event type"}
	}
	if len(fields) == 0 {
		return nil, &InvalidFieldError{EventType: eventType, Reason: "no fields selected"}
	}

	d := &Descriptor{
		eventType: eventType,
		name:      eventType.GraphQLType(),
		fields:    make([]string, 0, len(fields)),
		root:      &selection{},
	}
	for _, opt := range opts {
		opt(d)
	}

	if !namePattern.MatchString(d.name) {
		return nil, &InvalidFieldError{EventType: eventType, Reason: "invalid operation name " + d.name}
	}

	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		if err := d.add(field); err != nil {
			return nil, err
		}
		if !seen[field] {
			seen[field] = true
			d.fields = append(d.fields, field)
		}
	}

	d.query = d.render()
	return d, nil
}

// add validates one path against the schema and merges it into the tree.
func (d *Descriptor) add(field string) error {
	schema := d.eventType.Schema()
	node := d.root

	parts := strings.Split(field, ".")
	for i, part := range parts {
		if part == "" {
			return &InvalidFieldError{EventType: d.eventType, Field: field, Reason: "empty path segment"}
		}

		sub, ok := schema[part]
		if !ok {
			return &InvalidFieldError{EventType: d.eventType, Field: field, Reason: "unknown field " + part}
		}

		last := i == len(parts)-1
		if last && sub != nil {
			return &InvalidFieldError{EventType: d.eventType, Field: field, Reason: "object field requires a sub-selection"}
		}
		if !last && sub == nil {
			return &InvalidFieldError{EventType: d.eventType, Field: field, Reason: part + " is a scalar field"}
		}

		node = node.child(part)
		schema = sub
	}

	return nil
}

// EventType returns the event the descriptor applies to.
func (d *Descriptor) EventType() EventType {
	return d.eventType
}

// Name returns the subscription operation name.
func (d *Descriptor) Name() string {
	return d.name
}

// Fields returns the selected paths in declaration order, without duplicates.
func (d *Descriptor) Fields() []string {
	out := make([]string, len(d.fields))
	copy(out, d.fields)
	return out
}

// Query returns the serialized subscription. The text depends only on the
// event type, the name and the selected fields.
func (d *Descriptor) Query() string {
	return d.query
}

func (d *Descriptor) render() string {
	fragment := d.name + "WebhookPayload"

	var b strings.Builder
	b.WriteString("fragment " + fragment + " on " + d.eventType.GraphQLType() + " {\n")
	writeSelections(&b, d.root.children, 1)
	b.WriteString("}\n\n")
	b.WriteString("subscription " + d.name + " {\n")
	b.WriteString("  event {\n")
	b.WriteString("    ..." + fragment + "\n")
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

func writeSelections(b *strings.Builder, sels []*selection, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, s := range sels {
		if s.leaf() {
			b.WriteString(indent + s.name + "\n")
			continue
		}
		b.WriteString(indent + s.name + " {\n")
		writeSelections(b, s.children, depth+1)
		b.WriteString(indent + "}\n")
	}
}

// Project returns a copy of event holding only the selected fields. Lists are
// projected element by element. Fields missing from event stay missing, and
// extra fields are dropped.
func (d *Descriptor) Project(event map[string]any) map[string]any {
	if event == nil {
		return nil
	}
	return projectObject(d.root, event)
}

func projectObject(sel *selection, obj map[string]any) map[string]any {
	out := make(map[string]any, len(sel.children))
	for _, c := range sel.children {
		v, ok := obj[c.name]
		if !ok {
			continue
		}
		if c.leaf() {
			out[c.name] = v
			continue
		}
		out[c.name] = projectValue(c, v)
	}
	return out
}

func projectValue(sel *selection, v any) any {
	switch t := v.(type) {
	case map[string]any:
		return projectObject(sel, t)
	case []any:
		items := make([]any, len(t))
		for i, item := range t {
			items[i] = projectValue(sel, item)
		}
		return items
	default:
		// null relations and unexpected scalars pass through; decoding into
		// the payload type decides whether they are acceptable.
		return v
	}
}
