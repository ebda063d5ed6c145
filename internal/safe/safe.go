// Package safe converts panics at goroutine boundaries into errors.
package safe

import "fmt"

// Run executes fn and converts panics into returned errors tagged with scope.
func Run(scope string, fn func() error) (err error) {
	defer func() {
		recovered := recover()
		if recovered == nil {
			return
		}
		err = fmt.Errorf("%s: panic recovered: %v", scope, recovered)
	}()

	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", scope, err)
	}

	return nil
}
