package diff

// Connector-level operational attribute names, never part of the
// comparison on the remote side.
const (
	PasswordName = "__PASSWORD__"
	EnableName   = "__ENABLE__"
)

// RemoteSnapshot copies a connector object's attributes, dropping exactly
// the password and enable operational attributes. Everything else,
// auxiliary attributes included, is kept.
func RemoteSnapshot(attrs map[string][]string) map[string][]string {
	snapshot := make(map[string][]string, len(attrs))
	for name, values := range attrs {
		if name == PasswordName || name == EnableName {
			continue
		}
		snapshot[name] = values
	}
	return snapshot
}

// FindMisaligned compares the source projection against the remote
// snapshot attribute by attribute and returns one Misaligned per
// disagreeing attribute. Value sets are compared unordered with
// duplicates collapsed; an attribute present on one side only yields a
// record with the other side empty.
func FindMisaligned(resource, connObjectKeyValue string, source, remote map[string][]string) []Misaligned {
	var misaligned []Misaligned

	for name, sourceValues := range source {
		if _, onRemote := remote[name]; !onRemote {
			misaligned = append(misaligned, Misaligned{
				Resource:           resource,
				ConnObjectKeyValue: connObjectKeyValue,
				Name:               name,
				OnSyncope:          sourceValues,
				OnResource:         nil,
			})
		}
	}

	for name, remoteValues := range remote {
		sourceValues, onSource := source[name]
		if !onSource {
			misaligned = append(misaligned, Misaligned{
				Resource:           resource,
				ConnObjectKeyValue: connObjectKeyValue,
				Name:               name,
				OnSyncope:          nil,
				OnResource:         remoteValues,
			})
			continue
		}
		if !equalAsSets(sourceValues, remoteValues) {
			misaligned = append(misaligned, Misaligned{
				Resource:           resource,
				ConnObjectKeyValue: connObjectKeyValue,
				Name:               name,
				OnSyncope:          sourceValues,
				OnResource:         remoteValues,
			})
		}
	}

	return misaligned
}

func equalAsSets(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}
