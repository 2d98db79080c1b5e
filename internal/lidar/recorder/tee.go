package recorder

import (
	"errors"

	"github.com/banshee-data/lidarsim/internal/lidar"
)

// Tee fans frames out to several sinks. Every sink sees every frame even
// when an earlier one fails; the failures are joined.
type Tee []lidar.FrameSink

// WriteFrame writes frame to each sink in order.
func (t Tee) WriteFrame(frame *lidar.FrameRecord) error {
	var errs []error
	for _, s := range t {
		if err := s.WriteFrame(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (t Tee) Close() error {
	var errs []error
	for _, s := range t {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
