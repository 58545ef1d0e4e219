// README: Common value types shared across modules.
package types

// ID is an opaque entity identifier (UUID or hex string).
type ID string

type Point struct {
	Lat float64
	Lng float64
}
