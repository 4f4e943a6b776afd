package opti

import (
	"github.com/go-viper/mapstructure/v2"
)

// PluginOptions configure the engine itself, independent of the method.
type PluginOptions struct {
	// Verbose logs every method iteration.
	Verbose bool `json:"verbose"`
	// PrintTime logs the wall time of each solve.
	PrintTime bool `json:"print_time"`
	// ErrorOnFail turns a non-converged run into a SolveError. When false the last iterate is
	// returned as a solution.
	ErrorOnFail bool `json:"error_on_fail"`
}

// DefaultPluginOptions returns the options a new Opti starts with.
func DefaultPluginOptions() PluginOptions {
	return PluginOptions{ErrorOnFail: true}
}

// DecodeOptions decodes an option map into out, which must be a pointer to a struct already
// holding the defaults. Keys out does not know about are rejected.
func DecodeOptions(options map[string]any, out any) error {
	if len(options) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(options)
}

func decodePluginOptions(options map[string]any) (PluginOptions, error) {
	out := DefaultPluginOptions()
	if err := DecodeOptions(options, &out); err != nil {
		return PluginOptions{}, err
	}
	return out, nil
}
