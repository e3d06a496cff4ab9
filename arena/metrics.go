package arena

// SizeInUse returns the number of payload bytes behind the cursor, alignment
// padding included.
func (a *Arena) SizeInUse() int {
	if a.hdr == nil {
		return 0
	}
	return int(a.hdr.Offset)
}

// Capacity returns the number of usable payload bytes.
func (a *Arena) Capacity() int {
	if a.hdr == nil {
		return 0
	}
	return int(a.hdr.UserSize)
}

// Utilization returns the ratio of bytes in use to capacity (0.0 to 1.0).
// Returns 0.0 if the arena has no capacity.
func (a *Arena) Utilization() float64 {
	capacity := a.Capacity()
	if capacity == 0 {
		return 0
	}
	return float64(a.SizeInUse()) / float64(capacity)
}

// Metrics returns a snapshot of arena statistics.
func (a *Arena) Metrics() Metrics {
	m := Metrics{
		SizeInUse:   a.SizeInUse(),
		Capacity:    a.Capacity(),
		Utilization: a.Utilization(),
	}
	if a.hdr != nil {
		m.Reserved = int(a.hdr.TotalSize)
		if a.hdr.Offset < a.hdr.UserSize {
			m.Free = int(a.hdr.UserSize - a.hdr.Offset)
		}
	}
	return m
}

// Metrics contains statistical information about an arena.
type Metrics struct {
	SizeInUse   int     // Bytes behind the cursor
	Capacity    int     // Usable payload bytes
	Free        int     // Bytes ahead of the cursor
	Reserved    int     // Bytes backing the arena, header included
	Utilization float64 // Ratio of used to capacity (0.0-1.0)
}
