package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

var durationType = reflect.TypeOf(time.Duration(0))

// decodeOptions are used for every config file decode. A bare number given
// for a duration field is read as whole seconds, so `check_interval: 30`
// means thirty seconds rather than thirty nanoseconds.
func decodeOptions() viper.DecoderConfigOption {
	return viper.DecodeHook(secondsDurationHook)
}

func secondsDurationHook(from, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}

	v := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.String:
		s := v.String()
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.Duration(n) * time.Second, nil
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q: %w", s, err)
		}
		return d, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if from == durationType {
			return data, nil
		}
		return time.Duration(v.Int()) * time.Second, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return time.Duration(v.Uint()) * time.Second, nil
	case reflect.Float32, reflect.Float64:
		return time.Duration(v.Float() * float64(time.Second)), nil
	default:
		return data, nil
	}
}
