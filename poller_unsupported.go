//go:build !linux && !darwin && !freebsd

package termloop

func newBackend() (backend, error) {
	return nil, ErrUnsupportedPlatform
}
