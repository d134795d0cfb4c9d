package savings

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientFunds = errors.New("insufficient account balance")
	ErrAccountLocked     = errors.New("account is within its lock-in period")

	errNothingDue = errors.New("no charge due")
)

// ValidationError is a rejected command. Code follows the
// error.msg.<entity>.<reason> convention clients match on.
type ValidationError struct {
	Code    string `json:"code"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func invalid(code, param, format string, args ...any) error {
	return &ValidationError{
		Code:    code,
		Param:   param,
		Message: fmt.Sprintf(format, args...),
	}
}

// AsValidation returns the ValidationError wrapped in err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
