package di

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubResolver 按类型返回固定实例，并记录 Resolve 的调用顺序
type stubResolver struct {
	mu     sync.Mutex
	values map[reflect.Type]any
	calls  []reflect.Type
	err    error
}

func newStubResolver(values ...any) *stubResolver {
	r := &stubResolver{values: make(map[reflect.Type]any)}
	for _, v := range values {
		r.values[reflect.TypeOf(v)] = v
	}
	return r
}

func (r *stubResolver) bind(typ reflect.Type, v any) *stubResolver {
	r.values[typ] = v
	return r
}

func (r *stubResolver) Resolve(typ reflect.Type) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, typ)
	if r.err != nil {
		return nil, r.err
	}
	v, ok := r.values[typ]
	if !ok {
		return nil, fmt.Errorf("no binding for %v", typ)
	}
	return v, nil
}

func (r *stubResolver) ResolveOrParameter(typ reflect.Type, name string, params []Parameter) (any, error) {
	if p, ok := FindParameter(params, typ, name); ok {
		return p.Value(), nil
	}
	return r.Resolve(typ)
}

func (r *stubResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestParameterMatching(t *testing.T) {
	readerType := reflect.TypeFor[io.Reader]()
	params := []Parameter{
		Named("label", "named"),
		Typed[io.Reader](strings.NewReader("x")),
	}

	p, ok := FindParameter(params, reflect.TypeFor[string](), "label")
	require.True(t, ok)
	assert.Equal(t, "named", p.Value())

	p, ok = FindParameter(params, readerType, "other")
	require.True(t, ok)
	assert.IsType(t, &strings.Reader{}, p.Value())

	// 空名不匹配 NamedParameter
	_, ok = FindParameter([]Parameter{Named("", 1)}, reflect.TypeFor[int](), "")
	assert.False(t, ok)

	_, ok = FindParameter(nil, readerType, "label")
	assert.False(t, ok)
}

func TestResolverFunc(t *testing.T) {
	r := ResolverFunc(func(typ reflect.Type) (any, error) {
		return 42, nil
	})

	v, err := ResolveOrParameter[int](r, "n", []Parameter{Named("n", 7)})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	v, err = Resolve[int](r)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestGenericResolveHelpers(t *testing.T) {
	boom := errors.New("boom")

	t.Run("error passes through", func(t *testing.T) {
		r := newStubResolver()
		r.err = boom
		_, err := Resolve[*Gear](r)
		assert.Equal(t, boom, err)
	})

	t.Run("nil for nillable type", func(t *testing.T) {
		r := newStubResolver().bind(reflect.TypeFor[*Gear](), nil)
		g, err := Resolve[*Gear](r)
		require.NoError(t, err)
		assert.Nil(t, g)
	})

	t.Run("wrong type", func(t *testing.T) {
		r := newStubResolver().bind(reflect.TypeFor[*Gear](), &Engine{})
		_, err := Resolve[*Gear](r)
		var typeErr *ResolvedTypeError
		require.ErrorAs(t, err, &typeErr)
		assert.Equal(t, reflect.TypeFor[*Engine](), typeErr.Got)
	})

	t.Run("nil for value type", func(t *testing.T) {
		r := newStubResolver().bind(reflect.TypeFor[int](), nil)
		_, err := Resolve[int](r)
		var typeErr *ResolvedTypeError
		assert.ErrorAs(t, err, &typeErr)
	})
}

func TestInstanceOf(t *testing.T) {
	w := &Widget{}
	got, err := InstanceOf[Widget](w)
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = InstanceOf[Widget](&Gear{})
	var instErr *InstanceTypeError
	require.ErrorAs(t, err, &instErr)
	assert.Equal(t, reflect.TypeFor[*Gear](), instErr.Got)

	_, err = InstanceOf[Widget]((*Widget)(nil))
	require.ErrorAs(t, err, &instErr)
	assert.Nil(t, instErr.Got)
}

func TestTypeKey(t *testing.T) {
	assert.Equal(t, KeyOf[Widget](), KeyOf[*Widget]())
	assert.Equal(t, KeyOf[Widget](), KeyFor(reflect.TypeFor[*Widget]()))
	assert.Equal(t, "Widget", KeyOf[Widget]().Name())
	assert.Equal(t, "github.com/gocrud/inject/di", KeyOf[Widget]().PkgPath())
	assert.Equal(t, "github.com/gocrud/inject/di.Widget", KeyOf[Widget]().FullName())
	assert.Equal(t, "[]int", KeyOf[[]int]().FullName())
	assert.True(t, KeyFor(nil).IsZero())
	assert.Equal(t, "<nil>", KeyFor(nil).String())
}
