package handler

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// ValidationDetail is one entry of a 422 response body.
type ValidationDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

func init() {
	// Report JSON field names instead of Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// validationDetails turns a binding error into a list of located problems.
func validationDetails(err error) []ValidationDetail {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationDetail, 0, len(verrs))
		for _, fe := range verrs {
			msg, typ := "field required", "value_error.missing"
			if fe.Tag() != "required" {
				msg, typ = "failed on the '"+fe.Tag()+"' rule", "value_error."+fe.Tag()
			}
			out = append(out, ValidationDetail{Loc: bodyLoc(fe.Namespace()), Msg: msg, Type: typ})
		}
		return out
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		loc := []any{"body"}
		if typeErr.Field != "" {
			loc = append(loc, locPath(typeErr.Field)...)
		}
		return []ValidationDetail{{
			Loc:  loc,
			Msg:  "value is not a valid " + typeErr.Type.String(),
			Type: "type_error." + typeErr.Type.Kind().String(),
		}}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return []ValidationDetail{{
			Loc:  []any{"body", syntaxErr.Offset},
			Msg:  syntaxErr.Error(),
			Type: "value_error.jsondecode",
		}}
	}

	if errors.Is(err, io.EOF) {
		return []ValidationDetail{{Loc: []any{"body"}, Msg: "field required", Type: "value_error.missing"}}
	}

	return []ValidationDetail{{Loc: []any{"body"}, Msg: err.Error(), Type: "value_error"}}
}

// bodyLoc converts "notifyRequest.settings[0].label" into
// ["body", "settings", 0, "label"].
func bodyLoc(namespace string) []any {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	}
	return append([]any{"body"}, locPath(namespace)...)
}

func locPath(path string) []any {
	var loc []any
	for _, part := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(part, "[")
		if name != "" {
			loc = append(loc, name)
		}
		for rest != "" {
			idx, after, ok := strings.Cut(rest, "]")
			if !ok {
				break
			}
			if n, err := strconv.Atoi(idx); err == nil {
				loc = append(loc, n)
			} else {
				loc = append(loc, idx)
			}
			rest = strings.TrimPrefix(after, "[")
		}
	}
	return loc
}
