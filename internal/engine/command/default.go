package command

// defaultVocabulary holds every command the engine API exposes to enginectl.
// Wire values are protocol constants and must match the engine bit for bit.
var defaultVocabulary = MustNew(
	Declaration{
		Family: FamilyMetric,
		Commands: []Entry{
			{Name: "DUMP", Wire: "metrics.manager/dump"},
			{Name: "ENABLE", Wire: "metrics.manager/enable"},
			{Name: "LIST", Wire: "metrics.manager/list"},
			{Name: "GET", Wire: "metrics.manager/get"},
			{Name: "TEST", Wire: "metrics.manager/test"},
		},
	},
)

// Metrics manager commands.
var (
	MetricDump   = mustResolve(FamilyMetric, "DUMP")
	MetricEnable = mustResolve(FamilyMetric, "ENABLE")
	MetricList   = mustResolve(FamilyMetric, "LIST")
	MetricGet    = mustResolve(FamilyMetric, "GET")
	MetricTest   = mustResolve(FamilyMetric, "TEST")
)

// Resolve looks up name within family in the default vocabulary.
func Resolve(family Family, name string) (Identifier, error) {
	return defaultVocabulary.Resolve(family, name)
}

// Lookup finds the default-vocabulary command with the given wire value.
func Lookup(wire string) (Identifier, error) {
	return defaultVocabulary.Lookup(wire)
}

// All lists the commands of family in declaration order.
func All(family Family) []Identifier {
	return defaultVocabulary.All(family)
}

// Families lists the default vocabulary's families.
func Families() []Family {
	return defaultVocabulary.Families()
}

func mustResolve(family Family, name string) Identifier {
	id, err := defaultVocabulary.Resolve(family, name)
	if err != nil {
		panic(err)
	}
	return id
}
