package gatt

// notFound is returned by the lookup helpers below when no service or
// characteristic contains the handle in question.
const notFound = -1

// findServiceIndex returns the index into svcs of the primary service that
// owns handle h, using the strict-lower-bound containment rule: a service
// declaration lives at its own start_handle and is not itself a member
// attribute of the service. The database is small by design (§4.3), so
// this is a linear scan rather than an index structure.
func findServiceIndex(svcs []*PrimaryService, h uint16) int {
	for i, s := range svcs {
		if s.StartHandle < h && h <= s.EndHandle {
			return i
		}
	}
	return notFound
}

// findCharacteristicIndex returns the index into chars of the
// characteristic that owns handle h within one service, using the same
// strict-lower-bound rule as findServiceIndex.
func findCharacteristicIndex(chars []*Characteristic, h uint16) int {
	for i, c := range chars {
		if c.FirstHandle < h && h <= c.LastHandle {
			return i
		}
	}
	return notFound
}

// findCharacteristicByValueHandle scans every service then every
// characteristic for the one whose ValueHandle equals vh, gating first by
// handle-range containment and then by exact value-handle match, as used
// to demultiplex an inbound HANDLE_NOTIFY/HANDLE_IND.
func findCharacteristicByValueHandle(svcs []*PrimaryService, vh uint16) *Characteristic {
	si := findServiceIndex(svcs, vh)
	if si == notFound {
		return nil
	}
	s := svcs[si]
	ci := findCharacteristicIndex(s.Characteristics, vh)
	if ci == notFound {
		return nil
	}
	c := s.Characteristics[ci]
	if c.ValueHandle != vh {
		return nil
	}
	return c
}
