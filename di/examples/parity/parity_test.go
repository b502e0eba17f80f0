package parity

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocrud/inject/di"
)

// recordingResolver 按顺序记录注入器发出的每个解析请求
type recordingResolver struct {
	services map[reflect.Type]any
	requests []string
}

func newRecordingResolver() *recordingResolver {
	return &recordingResolver{services: map[reflect.Type]any{
		reflect.TypeFor[*Engine]():   &Engine{Power: 300},
		reflect.TypeFor[*Gear]():     &Gear{Teeth: 12},
		reflect.TypeFor[io.Writer](): &bytes.Buffer{},
	}}
}

func (r *recordingResolver) Resolve(typ reflect.Type) (any, error) {
	r.requests = append(r.requests, "Resolve "+typ.String())
	return r.lookup(typ)
}

func (r *recordingResolver) ResolveOrParameter(typ reflect.Type, name string, params []di.Parameter) (any, error) {
	r.requests = append(r.requests, fmt.Sprintf("ResolveOrParameter %s %q", typ, name))
	if p, ok := di.FindParameter(params, typ, name); ok {
		return p.Value(), nil
	}
	return r.lookup(typ)
}

func (r *recordingResolver) lookup(typ reflect.Type) (any, error) {
	if v, ok := r.services[typ]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no service for %s", typ)
}

func build(t *testing.T, injector di.Injector, params ...di.Parameter) (any, []string) {
	t.Helper()
	r := newRecordingResolver()
	instance, err := injector.CreateInstance(r, params)
	require.NoError(t, err)
	require.NoError(t, injector.Inject(instance, r, params))
	return instance, r.requests
}

func TestMachineGeneratedMatchesReflection(t *testing.T) {
	label := di.Named("label", "press")
	gen, genRequests := build(t, MachineGeneratedInjector{}, label)
	ref, refRequests := build(t, di.BuildReflectionInjector(di.KeyOf[Machine]()), label)

	assert.Equal(t, []string{
		`ResolveOrParameter string "label"`,
		"Resolve *parity.Engine",
		"Resolve io.Writer",
		`ResolveOrParameter *parity.Engine "engine"`,
		`ResolveOrParameter *parity.Gear "gear"`,
		`ResolveOrParameter *parity.Gear "gear"`,
		`ResolveOrParameter io.Writer "w"`,
	}, genRequests)
	assert.Equal(t, genRequests, refRequests)

	generated, reflected := gen.(*Machine), ref.(*Machine)
	assert.Equal(t, []string{"SetLog", "InjectAlpha", "InjectBase", "InjectZeta", "Setup"}, generated.Calls)
	assert.Equal(t, generated.Calls, reflected.Calls)

	for _, m := range []*Machine{generated, reflected} {
		assert.Equal(t, "press", m.label)
		assert.Equal(t, 300, m.Engine.Power)
		assert.Equal(t, 12, m.gear.Teeth)
		assert.NotNil(t, m.log)
		assert.NotNil(t, m.output)
		// setter 属性只经 setter 设置
		assert.Nil(t, m.Log)
	}
}

func TestBaseGeneratedMatchesReflection(t *testing.T) {
	gen, genRequests := build(t, BaseGeneratedInjector{})
	ref, refRequests := build(t, di.BuildReflectionInjector(di.KeyOf[Base]()))

	assert.Equal(t, []string{`ResolveOrParameter *parity.Gear "gear"`}, genRequests)
	assert.Equal(t, genRequests, refRequests)
	assert.Equal(t, gen.(*Base).Calls, ref.(*Base).Calls)
}

func TestReflectionSeesGeneratedDeclarations(t *testing.T) {
	info := di.BuildReflectionInjector(di.KeyOf[Machine]()).Info()
	require.Nil(t, info.Invalid)

	var methods []string
	for _, m := range info.Methods {
		methods = append(methods, m.Name)
	}
	assert.Equal(t, []string{"InjectAlpha", "InjectBase", "InjectZeta", "Setup"}, methods)
	assert.Equal(t, "NewMachine", info.Constructor.Name)
}

func TestAmbiguousFailsOnBothPaths(t *testing.T) {
	cache := di.NewInjectorCache()
	injector := cache.GetOrBuild(di.KeyOf[Ambiguous]())

	strategy, ok := cache.Strategy(di.KeyOf[Ambiguous]())
	require.True(t, ok)
	assert.Equal(t, di.StrategyReflection, strategy)

	_, err := injector.CreateInstance(newRecordingResolver(), nil)
	require.ErrorIs(t, err, di.ErrConstruction)
	assert.ErrorContains(t, err, di.ReasonAmbiguous)
}

func TestMachineUsesGeneratedInjector(t *testing.T) {
	cache := di.NewInjectorCache()
	assert.IsType(t, MachineGeneratedInjector{}, cache.GetOrBuild(di.KeyOf[Machine]()))

	strategy, ok := cache.Strategy(di.KeyOf[Machine]())
	require.True(t, ok)
	assert.Equal(t, di.StrategyGenerated, strategy)
}
