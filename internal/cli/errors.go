package cli

import "fmt"

type missingArgError struct {
	what string
}

func (e missingArgError) Error() string {
	return fmt.Sprintf("missing %s", e.what)
}

func errMissing(what string) error {
	return missingArgError{what: what}
}

type batchError struct {
	failed int
	total  int
}

func (e batchError) Error() string {
	return fmt.Sprintf("%d of %d failed", e.failed, e.total)
}
