package events

// EventMetadata asocia un tipo de evento con el topic donde se publica.
type EventMetadata struct {
	Topic string
}

// Registry mapea event_type -> metadata. Cada dominio aporta el suyo.
type Registry map[string]EventMetadata

// Merge combina varios registros en uno nuevo.
func Merge(registries ...Registry) Registry {
	merged := make(Registry)
	for _, r := range registries {
		for k, v := range r {
			merged[k] = v
		}
	}
	return merged
}
