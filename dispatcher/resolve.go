package dispatcher

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/askmodel/pkg/llmutils"
	"github.com/effective-security/askmodel/tools"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cast"
)

var (
	// ErrValidation marks invocations that reference an unknown tool,
	// omit required arguments, or carry arguments of the wrong shape.
	ErrValidation = errors.New("validation error")
	// ErrNoArguments is returned when the invocation has no arguments.
	ErrNoArguments = errors.New("No arguments provided")
)

var validate = validator.New()

// Resolve applies the descriptor defaults to the raw arguments.
// A required argument that is absent or null is an error.
// In strict mode the enum and range constraints are enforced,
// otherwise values are passed through as provided.
func Resolve(desc *tools.Descriptor, raw map[string]any, strict bool) (*ResolvedArguments, error) {
	args := llmutils.MergeInputs(desc.Defaults(), raw)

	for _, name := range desc.Required() {
		if _, ok := args[name]; !ok {
			return nil, errors.Mark(errors.Newf("missing required argument: %s", name), ErrValidation)
		}
	}

	res := new(ResolvedArguments)
	for _, arg := range desc.Arguments {
		val, ok := args[arg.Name]
		if !ok {
			continue
		}

		converted, err := convert(arg, val)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "argument %q", arg.Name), ErrValidation)
		}
		if strict {
			if err = checkConstraints(arg, converted); err != nil {
				return nil, err
			}
		}

		switch arg.Name {
		case tools.ArgQuery:
			res.Query = converted.(string)
		case tools.ArgImageReference:
			res.ImageReference = converted.(string)
		case tools.ArgModel:
			res.Model = converted.(string)
		case tools.ArgTemperature:
			res.Temperature = converted.(float64)
		case tools.ArgMaxOutputTokens:
			res.MaxOutputTokens = converted.(int)
		}
	}
	return res, nil
}

func convert(arg *tools.Argument, val any) (any, error) {
	switch arg.Type {
	case tools.TypeString:
		return cast.ToStringE(val)
	case tools.TypeNumber:
		switch v := val.(type) {
		case bool:
			return nil, errors.Newf("expected a number, got %v", v)
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, errors.Newf("expected a number, got %q", v)
			}
		}
		return cast.ToFloat64E(val)
	case tools.TypeInteger:
		return toInteger(val)
	}
	return nil, errors.Newf("unsupported argument type: %s", arg.Type)
}

// toInteger accepts whole numbers only, strings are parsed as base 10.
func toInteger(val any) (int, error) {
	switch v := val.(type) {
	case bool:
		return 0, errors.Newf("expected an integer, got %v", v)
	case float32:
		return wholeNumber(float64(v))
	case float64:
		return wholeNumber(v)
	case json.Number:
		return parseInteger(v.String())
	case string:
		return parseInteger(v)
	}
	return cast.ToIntE(val)
}

func wholeNumber(v float64) (int, error) {
	if v != math.Trunc(v) {
		return 0, errors.Newf("expected an integer, got %v", v)
	}
	// float64(math.MaxInt) rounds up to 2^63
	if v < math.MinInt || v >= math.MaxInt {
		return 0, errors.Newf("%v is out of the integer range", v)
	}
	return int(v), nil
}

func parseInteger(s string) (int, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 0)
	if err != nil {
		return 0, errors.Newf("expected a base 10 integer, got %q", s)
	}
	return int(n), nil
}

func checkConstraints(arg *tools.Argument, val any) error {
	tag := constraintsTag(arg.Constraints)
	if tag == "" {
		return nil
	}

	err := validate.Var(val, tag)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		var msg string
		switch fe.Tag() {
		case "oneof":
			msg = "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
		case "min":
			msg = "must be at least " + fe.Param()
		case "max":
			msg = "must be at most " + fe.Param()
		default:
			msg = "failed on " + fe.Tag()
		}
		return errors.Mark(errors.Newf("argument %q %s, got %v", arg.Name, msg, val), ErrValidation)
	}
	return errors.Mark(errors.Wrapf(err, "argument %q", arg.Name), ErrValidation)
}

// constraintsTag returns the validator tag for the constraints
func constraintsTag(c *tools.Constraints) string {
	if c == nil {
		return ""
	}

	var tags []string
	if len(c.Enum) > 0 {
		vals := make([]string, 0, len(c.Enum))
		for _, v := range c.Enum {
			vals = append(vals, cast.ToString(v))
		}
		tags = append(tags, "oneof="+strings.Join(vals, " "))
	}
	if c.Min != nil {
		tags = append(tags, "min="+strconv.FormatFloat(*c.Min, 'f', -1, 64))
	}
	if c.Max != nil {
		tags = append(tags, "max="+strconv.FormatFloat(*c.Max, 'f', -1, 64))
	}
	return strings.Join(tags, ",")
}
