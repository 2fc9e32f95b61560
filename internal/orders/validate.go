package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateOrder checks the shape of a candidate order before it reaches the
// stock transaction. Stock itself is not checked here.
func ValidateOrder(o Order) error {
	if err := validate.Struct(o); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidOrder, strings.Join(fields, ", "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidOrder, err)
	}
	for _, it := range o.Items {
		if NormalizeID(it.ID) == "" {
			return fmt.Errorf("%w: item without id", ErrInvalidOrder)
		}
	}
	return nil
}
