package blockflow

import "fmt"

// Version is the semantic version of the blockflow release.
const Version = "0.1.0"

// NumCPU is the number of logical CPUs the process was told to use.
var NumCPU int

// Convenience constants for data sizes.
const (
	Kilo = 1 << 10
	Mega = 1 << 20
	Giga = 1 << 30
)

// BytesPerElement is the byte size of one image sample.  Source images are
// assumed to carry 16-bit unsigned samples.
const BytesPerElement = 2

// Config is a map of keyword to arbitrary data to specify configurations
// via keyword, typically for storage driver settings.
type Config map[string]interface{}

// GetString returns a string value for the given key, with found indicating
// whether the key was present.
func (c Config) GetString(key string) (s string, found bool, err error) {
	v, found := c[key]
	if !found {
		return
	}
	s, ok := v.(string)
	if !ok {
		err = fmt.Errorf("setting %q must be a string (%v)", key, v)
	}
	return
}

// GetInt returns an integer value for the given key.
func (c Config) GetInt(key string) (i int, found bool, err error) {
	v, found := c[key]
	if !found {
		return
	}
	switch n := v.(type) {
	case int:
		i = n
	case int64:
		i = int(n)
	default:
		err = fmt.Errorf("setting %q must be an integer (%v)", key, v)
	}
	return
}

// GetBool returns a boolean value for the given key.
func (c Config) GetBool(key string) (b bool, found bool, err error) {
	v, found := c[key]
	if !found {
		return
	}
	b, ok := v.(bool)
	if !ok {
		err = fmt.Errorf("setting %q must be a bool (%v)", key, v)
	}
	return
}
