package gatt

// PrimaryService is a service discovered on a connected peripheral. It is
// appended to a Peripheral's database during the ReadingPrimaryService
// phase and never removed for the lifetime of the session.
type PrimaryService struct {
	// StartHandle and EndHandle bound the inclusive range of attributes
	// belonging to this service. StartHandle <= EndHandle always holds;
	// ranges of distinct services in one database do not overlap.
	StartHandle uint16
	EndHandle   uint16

	UUID UUID

	// Characteristics holds the characteristics discovered under this
	// service so far, in ascending handle order.
	Characteristics []*Characteristic
}

// appendCharacteristic appends c to the service's characteristic list,
// first closing off the previous characteristic's LastHandle at
// c.FirstHandle-1 if one exists. This is the rewriting rule the discovery
// driver relies on to keep characteristic ranges contiguous.
func (s *PrimaryService) appendCharacteristic(c *Characteristic) {
	if n := len(s.Characteristics); n > 0 {
		s.Characteristics[n-1].LastHandle = c.FirstHandle - 1
	}
	s.Characteristics = append(s.Characteristics, c)
}
