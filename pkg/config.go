package pkg

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// SetConfigFromEnvVars populates s (a pointer to a struct) from environment
// variables named by each field's `env` tag, falling back to the field's
// `envDefault` tag when the variable is unset. Supported kinds: string,
// bool, int-family, float64, and time.Duration (parsed with its own unit
// suffix, e.g. "15m"). Grounded on the teacher's reflection-based env
// binder (common/os.go) - no viper/cobra config framework is introduced
// because the teacher's ambient stack doesn't use one either (see
// DESIGN.md).
func SetConfigFromEnvVars(s any) error {
	v := reflect.ValueOf(s)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return InternalError{Code: "CONFIG_BIND", Message: "SetConfigFromEnvVars requires a non-nil pointer"}
	}

	e := v.Elem()
	t := e.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		tag, ok := field.Tag.Lookup("env")
		if !ok {
			continue
		}

		raw, present := os.LookupEnv(tag)
		if !present {
			raw = field.Tag.Get("envDefault")
		}

		if strings.TrimSpace(raw) == "" && !present {
			continue
		}

		fv := e.Field(i)
		if !fv.CanSet() {
			continue
		}

		if fv.Type() == durationType {
			if d, err := time.ParseDuration(raw); err == nil {
				fv.SetInt(int64(d))
			}

			continue
		}

		switch fv.Kind() {
		case reflect.String:
			fv.SetString(raw)
		case reflect.Bool:
			b, err := strconv.ParseBool(raw)
			if err == nil {
				fv.SetBool(b)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			n, err := strconv.ParseInt(raw, 10, 64)
			if err == nil {
				fv.SetInt(n)
			}
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(raw, 64)
			if err == nil {
				fv.SetFloat(f)
			}
		}
	}

	return nil
}
