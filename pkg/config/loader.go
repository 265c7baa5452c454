package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment into config")
	ErrNilPointer    = errors.New("nil pointer provided to config loader")
)

var (
	mu      sync.Mutex
	cache   = make(map[string]any)
	envOnce sync.Once
)

// Load parses the environment into v. The first call for a given struct type
// does the actual parse; later calls return the cached copy, so every
// component sees identical configuration.
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	envOnce.Do(func() {
		// A missing .env file is fine; production reads the real environment.
		_ = godotenv.Load()
	})

	key := typeName[T]()
	mu.Lock()
	defer mu.Unlock()

	if cached, ok := cache[key]; ok {
		*v = cached.(T)
		return nil
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	cache[key] = *v
	return nil
}

// MustLoad is Load that panics on failure, for configuration the process
// cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
}

// Reset drops the cache so tests can reload with a modified environment.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cache = make(map[string]any)
}

func typeName[T any]() string {
	t := reflect.TypeOf(*new(T))
	if t == nil {
		return fmt.Sprintf("%T", *new(T))
	}
	return t.String()
}
