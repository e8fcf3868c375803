package fetch

import (
	"errors"
	"fmt"
)

// ErrEmptyURL is returned for a blank URL.
var ErrEmptyURL = errors.New("fetch: empty url")

// FetchError reports a failed transfer or an unparsable body.
type FetchError struct {
	URL string
	Msg string
	Err error
}

func (e *FetchError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Msg)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchFailed reports whether err is or wraps a FetchError.
func IsFetchFailed(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
