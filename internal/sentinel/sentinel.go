package sentinel

var _ error = Error("")

// Error is a sentinel error backed by a string constant.
//
// Two Error values are equal when their text is equal, so errors.Is matches a
// wrapped sentinel against the declared constant.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}
