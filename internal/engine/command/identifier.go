package command

// Family names a group of related engine commands.
type Family string

const (
	// FamilyMetric groups the metrics manager commands.
	FamilyMetric Family = "metric"
)

// Identifier is one declared engine command. Its fields are unexported so the
// only valid values are those handed out by a Vocabulary.
type Identifier struct {
	family Family
	name   string
	wire   string
}

// Family returns the family that owns the command.
func (id Identifier) Family() Family {
	return id.family
}

// Name returns the symbolic name, for example "DUMP".
func (id Identifier) Name() string {
	return id.name
}

// WireValue returns the string the engine API expects in the command field.
func (id Identifier) WireValue() string {
	return id.wire
}

// IsZero reports whether id is the zero value rather than a declared command.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// String renders the identifier as family/NAME.
func (id Identifier) String() string {
	if id.IsZero() {
		return "<none>"
	}
	return string(id.family) + "/" + id.name
}

// WireValue returns the wire string for id.
func WireValue(id Identifier) string {
	return id.WireValue()
}
