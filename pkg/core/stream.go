package core

// ApplicationDescriptor identifies an application as announced by the streaming engine.
type ApplicationDescriptor struct {
	// ID is the engine-assigned application id.
	ID uint32 `json:"id" yaml:"id"`

	// Name is the application name (e.g. "live").
	Name string `json:"name" yaml:"name"`
}

// StreamDescriptor identifies a stream as announced by the streaming engine.
type StreamDescriptor struct {
	// ID is the engine-assigned stream id, unique within an application.
	ID uint32 `json:"id" yaml:"id"`

	// Name is the stream name.
	Name string `json:"name" yaml:"name"`

	// OriginID, when set, names the stream this one relays. A relay's
	// traffic is already counted at its origin.
	OriginID *uint32 `json:"origin_id,omitempty" yaml:"originID,omitempty"`

	// Provider is the ingest protocol that produced the stream.
	Provider ProviderType `json:"provider" yaml:"provider"`
}

// Origin returns the origin stream id and whether one is set.
func (s StreamDescriptor) Origin() (uint32, bool) {
	if s.OriginID == nil {
		return 0, false
	}
	return *s.OriginID, true
}

// NewRelayDescriptor builds a descriptor for a stream relaying origin.
func NewRelayDescriptor(id uint32, name string, origin uint32) StreamDescriptor {
	o := origin
	return StreamDescriptor{ID: id, Name: name, OriginID: &o}
}
