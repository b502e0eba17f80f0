package di

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gocrud/inject/logging"
)

type fixedInjector struct {
	name string
}

func (f *fixedInjector) CreateInstance(Resolver, []Parameter) (any, error) {
	return f.name, nil
}

func (f *fixedInjector) Inject(any, Resolver, []Parameter) error {
	return nil
}

// generatedTarget 同时提供生成注入器与旧版工厂，生成注入器优先
type generatedTarget struct{}

func (*generatedTarget) GetGeneratedInjector() Injector {
	return &fixedInjector{name: "legacy"}
}

type legacyTarget struct{}

func (*legacyTarget) GetGeneratedInjector() Injector {
	return &fixedInjector{name: "legacy"}
}

type legacyNil struct{}

func (*legacyNil) GetGeneratedInjector() Injector {
	return nil
}

type legacyPanics struct {
	injector Injector
}

func (l *legacyPanics) GetGeneratedInjector() Injector {
	return l.injector // nil 接收者上解引用
}

// generatedPanics 的生成工厂 panic，回退到旧版工厂
type generatedPanics struct{}

func (*generatedPanics) GetGeneratedInjector() Injector {
	return &fixedInjector{name: "legacy"}
}

type genericTarget[T any] struct {
	Gear *Gear `inject:""`
}

func init() {
	key := KeyOf[generatedTarget]()
	RegisterGenerated(GeneratedInjectorName(key.PkgPath(), key.Name()), func() Injector {
		return &fixedInjector{name: "generated"}
	})

	key = KeyOf[generatedPanics]()
	RegisterGenerated(GeneratedInjectorName(key.PkgPath(), key.Name()), func() Injector {
		panic("generated factory failed")
	})
}

func TestGetOrBuildConcurrentSingleFlight(t *testing.T) {
	cache := NewInjectorCache()
	const n = 64

	results := make([]Injector, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = cache.GetOrBuild(KeyOf[Widget]())
		}(i)
	}
	close(start)
	wg.Wait()

	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestGetOrBuildPointerKeyShared(t *testing.T) {
	cache := NewInjectorCache()
	assert.Same(t, cache.GetOrBuild(KeyOf[Widget]()), cache.GetOrBuild(KeyOf[*Widget]()))
}

func TestStrategySelection(t *testing.T) {
	tests := []struct {
		name     string
		key      TypeKey
		strategy Strategy
		created  any
	}{
		{"generated first", KeyOf[generatedTarget](), StrategyGenerated, "generated"},
		{"legacy factory", KeyOf[legacyTarget](), StrategyLegacy, "legacy"},
		{"generated panic falls through", KeyOf[generatedPanics](), StrategyLegacy, "legacy"},
		{"legacy nil falls through", KeyOf[legacyNil](), StrategyReflection, &legacyNil{}},
		{"legacy panic falls through", KeyOf[legacyPanics](), StrategyReflection, &legacyPanics{}},
		{"generic goes to reflection", KeyOf[genericTarget[int]](), StrategyReflection, &genericTarget[int]{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewInjectorCache()
			_, ok := cache.Strategy(tt.key)
			assert.False(t, ok)

			injector := cache.GetOrBuild(tt.key)
			strategy, ok := cache.Strategy(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.strategy, strategy)

			instance, err := injector.CreateInstance(newStubResolver(), nil)
			require.NoError(t, err)
			assert.Equal(t, tt.created, instance)
		})
	}
}

func TestZeroKey(t *testing.T) {
	injector := NewInjectorCache().GetOrBuild(TypeKey{})
	_, err := injector.CreateInstance(newStubResolver(), nil)
	assert.ErrorIs(t, err, ErrConstruction)
}

func TestRegisterGeneratedDuplicatePanics(t *testing.T) {
	name := GeneratedInjectorName("example.com/dup", "Thing")
	factory := func() Injector { return &fixedInjector{} }

	RegisterGenerated(name, factory)
	assert.Panics(t, func() { RegisterGenerated(name, factory) })
	assert.Panics(t, func() { RegisterGenerated("example.com/nil.ThingGeneratedInjector", nil) })
}

func TestCacheLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := logging.NewLoggingBuilder().
		SetMinimumLevel(logging.LogLevelDebug).
		AddProvider(logging.NewZapLoggerProvider(zap.New(core))).
		Build().
		CreateLogger("test")

	cache := NewInjectorCache(WithLogger(logger))
	cache.GetOrBuild(KeyOf[Widget]())
	cache.GetOrBuild(KeyOf[Widget]())
	cache.GetOrBuild(KeyOf[legacyPanics]())
	cache.GetOrBuild(KeyOf[generatedPanics]())

	built := logs.FilterMessage("built injector").All()
	require.Len(t, built, 3)
	assert.Equal(t, "di", built[0].LoggerName)
	assert.Equal(t, "github.com/gocrud/inject/di.Widget", built[0].ContextMap()["type"])
	assert.Equal(t, "reflection", built[0].ContextMap()["strategy"])

	assert.Equal(t, 1, logs.FilterMessage("legacy injector factory panicked").Len())

	panicked := logs.FilterMessage("generated injector factory panicked").All()
	require.Len(t, panicked, 1)
	assert.Equal(t, zapcore.WarnLevel, panicked[0].Level)
	assert.Equal(t, "generated factory failed", panicked[0].ContextMap()["panic"])
}

func TestDefaultCache(t *testing.T) {
	assert.Same(t, InjectorFor[Widget](), GetOrBuild(KeyOf[*Widget]()))
	assert.Same(t, DefaultCache().GetOrBuild(KeyOf[Widget]()), InjectorFor[Widget]())
}

func BenchmarkGetOrBuild(b *testing.B) {
	cache := NewInjectorCache()
	key := KeyOf[Widget]()
	cache.GetOrBuild(key)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cache.GetOrBuild(key)
		}
	})
}

func BenchmarkReflectionInject(b *testing.B) {
	injector := BuildReflectionInjector(KeyOf[Widget]())
	gear := &Gear{}
	resolver := ResolverFunc(func(reflect.Type) (any, error) { return gear, nil })
	w := &Widget{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = injector.Inject(w, resolver, nil)
	}
}
