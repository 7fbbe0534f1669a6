package platform

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrMalformedRow is returned when the platform answers with a row that is
// missing required fields
var ErrMalformedRow = errors.New("malformed row")

var validate = validator.New(validator.WithRequiredStructEnabled())

// checkRow validates one decoded row
func checkRow(row interface{}) error {
	if err := validate.Struct(row); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrMalformedRow, verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	return nil
}

// checkRows validates every row and reports the first failure with its index
func checkRows[T any](rows []T) error {
	for i := range rows {
		if err := checkRow(&rows[i]); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}
