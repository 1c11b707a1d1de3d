// Package status emits machine-readable status events as single JSON
// lines, one per state transition, grounded on
// original_source/src/status.rs's Builder/build("type").field(...).write().
// Go translation: logrus's JSON formatter already renders a
// map[string]interface{} as one line of JSON to a writer, so the
// builder here accumulates logrus.Fields and emits through a logrus
// entry rather than hand-rolling encoding/json.
package status

import "github.com/sirupsen/logrus"

// Builder accumulates named fields for one status event.
type Builder struct {
	log    *logrus.Entry
	typ    string
	fields logrus.Fields
}

// Emitter is a configured sink for status events -- typically a
// logrus.Logger dedicated to status output (see internal/logging),
// kept distinct from the general application log stream.
type Emitter struct {
	log *logrus.Logger
}

// NewEmitter wraps an existing logrus.Logger as a status sink.
func NewEmitter(log *logrus.Logger) *Emitter { return &Emitter{log: log} }

// Build starts a new event of the given type, mirroring
// original_source/src/status.rs's build(type_).
func (e *Emitter) Build(eventType string) *Builder {
	return &Builder{
		log:    logrus.NewEntry(e.log),
		typ:    eventType,
		fields: logrus.Fields{},
	}
}

// Field attaches name=value to the event, mirroring Builder::field.
func (b *Builder) Field(name string, value interface{}) *Builder {
	b.fields[name] = value
	return b
}

// Write emits the accumulated event as one JSON line, mirroring
// Builder::write.
func (b *Builder) Write() {
	b.fields["type"] = b.typ
	b.log.WithFields(b.fields).Info(b.typ)
}
