// +build !linux

package device

// NodePath returns an empty path on platforms without joystick nodes.
func NodePath(index int) string {
	return ""
}

// Open always fails with ErrUnsupported.
func Open(index int) (Device, error) {
	return nil, ErrUnsupported
}

// DetectAndOpen always fails with ErrUnsupported.
func DetectAndOpen(startIndex int) (Device, error) {
	return nil, ErrUnsupported
}
