package hypergraph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateHyperedge checks in against its validation tags and maps the first
// failure onto the matching sentinel.
func validateHyperedge(in HyperedgeInput) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) || len(validationErrors) == 0 {
		return err
	}
	e := validationErrors[0]
	switch {
	case e.StructField() == "ID":
		return fmt.Errorf("%w: hyperedge id is required", ErrMissingID)
	case e.StructField() == "Members" && e.Tag() == "min":
		return fmt.Errorf("%w: hyperedge %q has no members", ErrEmptyMembership, in.ID)
	case strings.HasPrefix(e.StructField(), "Members["):
		return fmt.Errorf("%w: hyperedge %q member %s is blank", ErrUnknownNode, in.ID, strings.TrimPrefix(e.StructField(), "Members"))
	}
	return fmt.Errorf("%s is invalid", strings.ToLower(e.Field()))
}
