package estop

import "errors"

// Fanout sends commands to every commander. Cancel requests go to the
// first commander only, so a job is cancelled through one path.
type Fanout []Commander

// SendCommand sends cmd to all commanders.
func (f Fanout) SendCommand(cmd string) error {
	var errs []error
	for _, c := range f {
		if err := c.SendCommand(cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RequestCancel asks the primary commander to cancel.
func (f Fanout) RequestCancel() error {
	if len(f) == 0 {
		return errors.New("estop: no commander configured")
	}
	return f[0].RequestCancel()
}
