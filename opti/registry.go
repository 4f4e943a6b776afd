package opti

import (
	"context"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/ami-iit/stepwise/logging"
)

// DefaultMethod is the method a new Opti starts with.
const DefaultMethod = "auglag"

// A Method minimizes a transcribed NLP.
type Method interface {
	// Minimize runs the method from nlp.Start(). A non-nil error means the run was aborted;
	// a completed run reports how it ended through Result.Status.
	Minimize(ctx context.Context, nlp *NLP, logger logging.Logger) (*Result, error)
}

// Result is what a method run produced.
type Result struct {
	X          []float64
	Status     Status
	Iterations int
}

// A MethodConstructor builds a method from its option map. Unknown or invalid options are errors.
type MethodConstructor func(options map[string]any) (Method, error)

var (
	registryMu     sync.RWMutex
	methodRegistry = map[string]MethodConstructor{}
)

// RegisterMethod registers a method constructor under a name.
func RegisterMethod(name string, constructor MethodConstructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, old := methodRegistry[name]; old {
		panic(errors.Errorf("trying to register two methods with same name %s", name))
	}
	if constructor == nil {
		panic(errors.Errorf("cannot register a nil constructor for method %s", name))
	}
	methodRegistry[name] = constructor
}

// DeregisterMethod removes a previously registered method.
func DeregisterMethod(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(methodRegistry, name)
}

// RegisteredMethods returns the names of all registered methods, sorted.
func RegisteredMethods() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := lo.Keys(methodRegistry)
	slices.Sort(names)
	return names
}

func lookupMethod(name string) (MethodConstructor, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	constructor, ok := methodRegistry[name]
	return constructor, ok
}
